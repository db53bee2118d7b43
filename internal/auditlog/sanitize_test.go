package auditlog

import (
	"context"
	"strings"
	"testing"
)

func TestSanitizeRequest(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "redacts user data",
			in:   `{"name":"web-1","user_data":"#cloud-config\npassword: x"}`,
			want: `{"name":"web-1","user_data":"<redacted>"}`,
		},
		{
			name: "keeps plain fields",
			in:   `{"base_instance_name":"web-1","cloud":"mycloud"}`,
			want: `{"base_instance_name":"web-1","cloud":"mycloud"}`,
		},
		{
			name: "not an object",
			in:   "  garbage  ",
			want: "garbage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeRequest([]byte(tt.in)); got != tt.want {
				t.Errorf("SanitizeRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeRequest_Truncates(t *testing.T) {
	got := SanitizeRequest([]byte(strings.Repeat("x", maxRequest+10)))
	if len(got) != maxRequest+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncated output, got length %d", len(got))
	}
}

func TestAnnotate(t *testing.T) {
	ctx := WithMetadata(context.Background())
	Annotate(ctx, Metadata{Cloud: "mycloud", ResourceType: "server"})
	Annotate(ctx, Metadata{ResourceName: "web-1-scale3", ResourceID: "srv-3"})

	want := Metadata{Cloud: "mycloud", ResourceType: "server", ResourceID: "srv-3", ResourceName: "web-1-scale3"}
	if got := MetadataFromContext(ctx); got != want {
		t.Errorf("MetadataFromContext() = %+v, want %+v", got, want)
	}

	// Without WithMetadata, Annotate is a no-op.
	bare := context.Background()
	Annotate(bare, Metadata{Cloud: "x"})
	if got := MetadataFromContext(bare); got != (Metadata{}) {
		t.Errorf("expected empty metadata, got %+v", got)
	}
}
