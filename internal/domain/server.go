package domain

import "time"

// Server status values reported by the compute service.
const (
	ServerStatusActive = "ACTIVE"
	ServerStatusBuild  = "BUILD"
	ServerStatusError  = "ERROR"
)

// Address types reported in a server's addresses map.
const (
	AddressTypeFixed    = "fixed"
	AddressTypeFloating = "floating"
)

// Server represents a compute instance.
type Server struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	ImageID  string `json:"image_id,omitempty"`
	FlavorID string `json:"flavor_id,omitempty"`
	KeyName  string `json:"key_name,omitempty"`

	// Networks lists the attached network names in the order the
	// platform reported them. Networks[0] is the primary network.
	Networks []string `json:"networks,omitempty"`

	// PrivateIP and FloatingIP are the first fixed and floating
	// addresses found, for convenience.
	PrivateIP  string `json:"private_ip,omitempty"`
	FloatingIP string `json:"floating_ip,omitempty"`

	FixedIPs    []string `json:"fixed_ips,omitempty"`
	FloatingIPs []string `json:"floating_ips,omitempty"`

	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// PrimaryNetwork returns the first attached network name, or "".
func (s *Server) PrimaryNetwork() string {
	if len(s.Networks) == 0 {
		return ""
	}
	return s.Networks[0]
}

// HasFloatingIP reports whether the server already has a floating address.
func (s *Server) HasFloatingIP() bool {
	return s.FloatingIP != ""
}

// CreateServerOpts holds the parameters for booting a new server.
type CreateServerOpts struct {
	Name          string
	ImageID       string
	FlavorID      string
	NetworkID     string
	KeyName       string
	SecurityGroup string

	// UserData is the raw (not yet base64 encoded) cloud-init payload.
	UserData string

	Metadata map[string]string
}
