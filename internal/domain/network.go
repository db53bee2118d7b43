package domain

// Network is a layer-2 network.
type Network struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Status    string   `json:"status"`
	External  bool     `json:"external"`
	SubnetIDs []string `json:"subnets"`
}

// Subnet is an IP range within a network.
type Subnet struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NetworkID string `json:"network_id"`
	CIDR      string `json:"cidr"`
	GatewayIP string `json:"gateway_ip,omitempty"`
	IPVersion int    `json:"ip_version"`
}

// Router connects subnets and, optionally, an external gateway network.
type Router struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Status            string `json:"status"`
	ExternalNetworkID string `json:"external_network_id,omitempty"`

	// InterfaceSubnetIDs is only filled by calls that enumerate the
	// router's ports.
	InterfaceSubnetIDs []string `json:"interface_subnet_ids,omitempty"`
}

// RouterInterface binds a router to one subnet through a port.
type RouterInterface struct {
	PortID   string `json:"port_id"`
	SubnetID string `json:"subnet_id"`
}

// FloatingIP is a publicly routable address bindable to a port.
type FloatingIP struct {
	ID        string `json:"id"`
	Address   string `json:"floating_ip_address"`
	NetworkID string `json:"floating_network_id"`
	PortID    string `json:"port_id,omitempty"`
	FixedIP   string `json:"fixed_ip_address,omitempty"`
	Status    string `json:"status"`
}

// Bound reports whether the floating IP is attached to a port.
func (f *FloatingIP) Bound() bool {
	return f.PortID != ""
}

// CreateNetworkOpts holds the parameters for creating a network and,
// when CIDR is set, a subnet inside it.
type CreateNetworkOpts struct {
	Name       string
	CIDR       string
	SubnetName string
	GatewayIP  string
}

// NetworkWithSubnet is the result of CreateNetwork. Subnet is nil when no
// CIDR was requested.
type NetworkWithSubnet struct {
	Network *Network `json:"network"`
	Subnet  *Subnet  `json:"subnet,omitempty"`
}
