package auditlog

import "context"

// Metadata describes the resource an audited request touched. Handlers
// fill it in as they learn names and ids.
type Metadata struct {
	Cloud        string
	ResourceType string
	ResourceID   string
	ResourceName string

	// Detail carries the error message of a failed request.
	Detail string
}

type metadataKey struct{}

// WithMetadata returns a context carrying an empty, mutable Metadata.
func WithMetadata(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, metadataKey{}, &Metadata{})
}

// Annotate merges meta into the context's Metadata. Empty fields keep
// their previous value. It is a no-op without WithMetadata.
func Annotate(ctx context.Context, meta Metadata) {
	if ctx == nil {
		return
	}
	existing, _ := ctx.Value(metadataKey{}).(*Metadata)
	if existing == nil {
		return
	}
	existing.Cloud = pick(meta.Cloud, existing.Cloud)
	existing.ResourceType = pick(meta.ResourceType, existing.ResourceType)
	existing.ResourceID = pick(meta.ResourceID, existing.ResourceID)
	existing.ResourceName = pick(meta.ResourceName, existing.ResourceName)
	existing.Detail = pick(meta.Detail, existing.Detail)
}

// MetadataFromContext returns audit metadata stored in the context.
func MetadataFromContext(ctx context.Context) Metadata {
	if ctx == nil {
		return Metadata{}
	}
	meta, _ := ctx.Value(metadataKey{}).(*Metadata)
	if meta == nil {
		return Metadata{}
	}
	return *meta
}

func pick(next, fallback string) string {
	if next != "" {
		return next
	}
	return fallback
}
