package domain

// Provisioning states reported by the load-balancer service.
const (
	ProvisioningActive        = "ACTIVE"
	ProvisioningError         = "ERROR"
	ProvisioningPendingCreate = "PENDING_CREATE"
	ProvisioningPendingUpdate = "PENDING_UPDATE"
	ProvisioningPendingDelete = "PENDING_DELETE"
)

// LoadBalancer is an Octavia load balancer.
type LoadBalancer struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	VIPSubnetID        string   `json:"vip_subnet_id"`
	VIPAddress         string   `json:"vip_address,omitempty"`
	ProvisioningStatus string   `json:"provisioning_status"`
	OperatingStatus    string   `json:"operating_status"`
	ListenerIDs        []string `json:"listeners,omitempty"`
	PoolIDs            []string `json:"pools,omitempty"`
}

// Listener accepts traffic for a load balancer on one protocol/port.
type Listener struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	LoadBalancerID string `json:"loadbalancer_id"`
	Protocol       string `json:"protocol"`
	ProtocolPort   int    `json:"protocol_port"`
}

// Pool groups backend members behind a balancing algorithm.
type Pool struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	LoadBalancerID string `json:"loadbalancer_id"`
	Protocol       string `json:"protocol"`
	LBAlgorithm    string `json:"lb_algorithm"`
}
