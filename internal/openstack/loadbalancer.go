package openstack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"nathanbeddoewebdev/stackgate/internal/domain"
	"nathanbeddoewebdev/stackgate/internal/metrics"
	"nathanbeddoewebdev/stackgate/internal/poll"

	"golang.org/x/sync/errgroup"
)

const lbaasPrefix = "/v2/lbaas"

// --- Octavia wire types ---

type octaviaRef struct {
	ID string `json:"id"`
}

type octaviaLoadBalancer struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	VIPSubnetID        string       `json:"vip_subnet_id"`
	VIPAddress         string       `json:"vip_address"`
	ProvisioningStatus string       `json:"provisioning_status"`
	OperatingStatus    string       `json:"operating_status"`
	Listeners          []octaviaRef `json:"listeners"`
	Pools              []octaviaRef `json:"pools"`
}

type octaviaListener struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Protocol      string       `json:"protocol"`
	ProtocolPort  int          `json:"protocol_port"`
	LoadBalancers []octaviaRef `json:"loadbalancers"`
}

type octaviaPool struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Protocol      string       `json:"protocol"`
	LBAlgorithm   string       `json:"lb_algorithm"`
	LoadBalancers []octaviaRef `json:"loadbalancers"`
}

func ids(refs []octaviaRef) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.ID)
	}
	return out
}

// belongsTo reports whether a child's loadbalancers list includes lbID. An
// empty list is taken at face value since the query already filtered it.
func belongsTo(refs []octaviaRef, lbID string) bool {
	if len(refs) == 0 {
		return true
	}
	for _, r := range refs {
		if r.ID == lbID {
			return true
		}
	}
	return false
}

func toDomainLoadBalancer(lb octaviaLoadBalancer) domain.LoadBalancer {
	return domain.LoadBalancer{
		ID:                 lb.ID,
		Name:               lb.Name,
		Description:        lb.Description,
		VIPSubnetID:        lb.VIPSubnetID,
		VIPAddress:         lb.VIPAddress,
		ProvisioningStatus: lb.ProvisioningStatus,
		OperatingStatus:    lb.OperatingStatus,
		ListenerIDs:        ids(lb.Listeners),
		PoolIDs:            ids(lb.Pools),
	}
}

// ListLoadBalancers returns the project's load balancers.
func (c *Client) ListLoadBalancers(ctx context.Context) ([]domain.LoadBalancer, error) {
	var out struct {
		LoadBalancers []octaviaLoadBalancer `json:"loadbalancers"`
	}
	if _, err := c.do(ctx, ServiceLoadBalancer, http.MethodGet, lbaasPrefix+"/loadbalancers", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list load balancers: %w", err)
	}

	lbs := make([]domain.LoadBalancer, 0, len(out.LoadBalancers))
	for _, lb := range out.LoadBalancers {
		lbs = append(lbs, toDomainLoadBalancer(lb))
	}
	return lbs, nil
}

// GetLoadBalancer fetches one load balancer by ID.
func (c *Client) GetLoadBalancer(ctx context.Context, id string) (*domain.LoadBalancer, error) {
	var out struct {
		LoadBalancer octaviaLoadBalancer `json:"loadbalancer"`
	}
	if _, err := c.do(ctx, ServiceLoadBalancer, http.MethodGet, lbaasPrefix+"/loadbalancers/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get load balancer %s: %w", id, err)
	}
	lb := toDomainLoadBalancer(out.LoadBalancer)
	return &lb, nil
}

// CreateLoadBalancerRequest describes a new load balancer. Exactly one of
// VIPSubnetID and VIPSubnetName is needed; the ID wins if both are set.
type CreateLoadBalancerRequest struct {
	Name          string
	VIPSubnetID   string
	VIPSubnetName string
	Description   string
}

// CreateLoadBalancer creates a load balancer on the given VIP subnet.
func (c *Client) CreateLoadBalancer(ctx context.Context, req CreateLoadBalancerRequest) (*domain.LoadBalancer, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("load balancer name is required: %w", domain.ErrInvalidInput)
	}
	subnetID := req.VIPSubnetID
	if subnetID == "" {
		if req.VIPSubnetName == "" {
			return nil, fmt.Errorf("vip_subnet_id or vip_subnet_name is required: %w", domain.ErrInvalidInput)
		}
		id, err := c.Resolve(ctx, KindSubnet, req.VIPSubnetName)
		if err != nil {
			return nil, err
		}
		subnetID = id
	}

	body := map[string]any{"loadbalancer": map[string]any{
		"name":           req.Name,
		"vip_subnet_id":  subnetID,
		"description":    req.Description,
		"admin_state_up": true,
	}}
	var out struct {
		LoadBalancer octaviaLoadBalancer `json:"loadbalancer"`
	}
	if _, err := c.do(ctx, ServiceLoadBalancer, http.MethodPost, lbaasPrefix+"/loadbalancers", body, &out); err != nil {
		return nil, fmt.Errorf("failed to create load balancer %q: %w", req.Name, err)
	}
	ResolverFrom(ctx).forget(c.cloud, KindLoadBalancer)

	lb := toDomainLoadBalancer(out.LoadBalancer)
	c.log.Info().Str("lb", lb.Name).Str("id", lb.ID).Msg("load balancer created")
	return &lb, nil
}

// CreateListener adds a listener to the load balancer named lbName.
// Protocol defaults to HTTP and port to 80.
func (c *Client) CreateListener(ctx context.Context, name, lbName, protocol string, port int) (*domain.Listener, error) {
	if protocol == "" {
		protocol = "HTTP"
	}
	if port == 0 {
		port = 80
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("protocol_port %d out of range: %w", port, domain.ErrInvalidInput)
	}
	lbID, err := c.Resolve(ctx, KindLoadBalancer, lbName)
	if err != nil {
		return nil, err
	}

	body := map[string]any{"listener": map[string]any{
		"name":            name,
		"loadbalancer_id": lbID,
		"protocol":        strings.ToUpper(protocol),
		"protocol_port":   port,
		"admin_state_up":  true,
	}}
	var out struct {
		Listener octaviaListener `json:"listener"`
	}
	if _, err := c.do(ctx, ServiceLoadBalancer, http.MethodPost, lbaasPrefix+"/listeners", body, &out); err != nil {
		return nil, fmt.Errorf("failed to create listener %q on %q: %w", name, lbName, err)
	}

	l := out.Listener
	c.log.Info().Str("listener", l.Name).Str("id", l.ID).Str("lb", lbName).Msg("listener created")
	return &domain.Listener{ID: l.ID, Name: l.Name, LoadBalancerID: lbID, Protocol: l.Protocol, ProtocolPort: l.ProtocolPort}, nil
}

// CreatePool adds a pool to the load balancer named lbName. Protocol
// defaults to HTTP and the algorithm to ROUND_ROBIN.
func (c *Client) CreatePool(ctx context.Context, name, lbName, protocol, algorithm string) (*domain.Pool, error) {
	if protocol == "" {
		protocol = "HTTP"
	}
	if algorithm == "" {
		algorithm = "ROUND_ROBIN"
	}
	lbID, err := c.Resolve(ctx, KindLoadBalancer, lbName)
	if err != nil {
		return nil, err
	}

	body := map[string]any{"pool": map[string]any{
		"name":            name,
		"loadbalancer_id": lbID,
		"protocol":        strings.ToUpper(protocol),
		"lb_algorithm":    strings.ToUpper(algorithm),
		"admin_state_up":  true,
	}}
	var out struct {
		Pool octaviaPool `json:"pool"`
	}
	if _, err := c.do(ctx, ServiceLoadBalancer, http.MethodPost, lbaasPrefix+"/pools", body, &out); err != nil {
		return nil, fmt.Errorf("failed to create pool %q on %q: %w", name, lbName, err)
	}

	p := out.Pool
	c.log.Info().Str("pool", p.Name).Str("id", p.ID).Str("lb", lbName).Msg("pool created")
	return &domain.Pool{ID: p.ID, Name: p.Name, LoadBalancerID: lbID, Protocol: p.Protocol, LBAlgorithm: p.LBAlgorithm}, nil
}

// ListListeners returns the listeners of lbID.
func (c *Client) ListListeners(ctx context.Context, lbID string) ([]domain.Listener, error) {
	var out struct {
		Listeners []octaviaListener `json:"listeners"`
	}
	path := lbaasPrefix + "/listeners?loadbalancer_id=" + url.QueryEscape(lbID)
	if _, err := c.do(ctx, ServiceLoadBalancer, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list listeners: %w", err)
	}

	var listeners []domain.Listener
	for _, l := range out.Listeners {
		if !belongsTo(l.LoadBalancers, lbID) {
			continue
		}
		listeners = append(listeners, domain.Listener{ID: l.ID, Name: l.Name, LoadBalancerID: lbID, Protocol: l.Protocol, ProtocolPort: l.ProtocolPort})
	}
	return listeners, nil
}

// ListPools returns the pools of lbID.
func (c *Client) ListPools(ctx context.Context, lbID string) ([]domain.Pool, error) {
	var out struct {
		Pools []octaviaPool `json:"pools"`
	}
	path := lbaasPrefix + "/pools?loadbalancer_id=" + url.QueryEscape(lbID)
	if _, err := c.do(ctx, ServiceLoadBalancer, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	var pools []domain.Pool
	for _, p := range out.Pools {
		if !belongsTo(p.LoadBalancers, lbID) {
			continue
		}
		pools = append(pools, domain.Pool{ID: p.ID, Name: p.Name, LoadBalancerID: lbID, Protocol: p.Protocol, LBAlgorithm: p.LBAlgorithm})
	}
	return pools, nil
}

// DeleteLoadBalancer tears down the load balancer named name: listeners,
// then pools, then the load balancer itself, and waits until the platform
// answers 404 for it.
//
// Child deletions are best-effort; failures are logged and the teardown
// continues. When the poll budget runs out before the 404, the error wraps
// domain.ErrDeleteUnresolved.
func (c *Client) DeleteLoadBalancer(ctx context.Context, name string) (string, error) {
	lbID, err := c.Resolve(ctx, KindLoadBalancer, name)
	if err != nil {
		return "", err
	}
	logger := c.log.With().Str("lb", name).Str("id", lbID).Logger()

	var (
		listeners []domain.Listener
		pools     []domain.Pool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listeners, err = c.ListListeners(gctx, lbID)
		return err
	})
	g.Go(func() error {
		var err error
		pools, err = c.ListPools(gctx, lbID)
		return err
	})
	if err := g.Wait(); err != nil {
		return lbID, fmt.Errorf("failed to enumerate children of load balancer %q: %w", name, err)
	}

	for _, l := range listeners {
		c.deleteChild(ctx, lbID, "listener", l.ID, l.Name)
	}
	for _, p := range pools {
		c.deleteChild(ctx, lbID, "pool", p.ID, p.Name)
	}
	if ctx.Err() != nil {
		return lbID, ctx.Err()
	}
	// Each child delete puts the LB back into PENDING_UPDATE.
	if len(listeners)+len(pools) > 0 {
		if err := c.waitLoadBalancerSettled(ctx, lbID); err != nil {
			logger.Warn().Err(err).Msg("load balancer did not settle before delete")
		}
		if ctx.Err() != nil {
			return lbID, ctx.Err()
		}
	}

	status, err := c.do(ctx, ServiceLoadBalancer, http.MethodDelete, lbaasPrefix+"/loadbalancers/"+url.PathEscape(lbID), nil, nil)
	if err != nil {
		return lbID, fmt.Errorf("failed to delete load balancer %q: %w", name, err)
	}
	switch status {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
	default:
		return lbID, fmt.Errorf("delete load balancer %q: unexpected status %d", name, status)
	}
	logger.Info().Int("listeners", len(listeners)).Int("pools", len(pools)).Msg("load balancer delete accepted")
	ResolverFrom(ctx).forget(c.cloud, KindLoadBalancer)

	outcome, err := poll.Until(ctx, c.poll.LBDelete, func(ctx context.Context) (bool, error) {
		metrics.PollAttemptsTotal.WithLabelValues("lb_delete").Inc()
		_, err := c.GetLoadBalancer(ctx, lbID)
		if errors.Is(err, domain.ErrNotFound) {
			return true, nil
		}
		return false, err
	})
	switch outcome {
	case poll.Done:
		logger.Info().Msg("load balancer deleted")
		return lbID, nil
	case poll.TimedOut:
		return lbID, fmt.Errorf("waiting for load balancer %q deletion: %w", name, err)
	}
	if err != nil {
		return lbID, fmt.Errorf("waiting for load balancer %q deletion: %w", name, err)
	}
	logger.Warn().Int("attempts", c.poll.LBDelete.MaxAttempts).Msg("load balancer still present after delete")
	return lbID, fmt.Errorf("load balancer %q: %w", name, domain.ErrDeleteUnresolved)
}

// deleteChild waits for the load balancer to leave PENDING_* and deletes
// one listener or pool. Failures are logged, not returned.
func (c *Client) deleteChild(ctx context.Context, lbID, kind, id, name string) {
	logger := c.log.With().Str("lb_id", lbID).Str(kind, name).Str("id", id).Logger()

	if err := c.waitLoadBalancerSettled(ctx, lbID); err != nil {
		logger.Warn().Err(err).Msg("load balancer did not settle before child delete")
	}
	if ctx.Err() != nil {
		return
	}

	path := lbaasPrefix + "/" + kind + "s/" + url.PathEscape(id)
	if _, err := c.do(ctx, ServiceLoadBalancer, http.MethodDelete, path, nil, nil); err != nil {
		logger.Error().Err(err).Msgf("failed to delete %s", kind)
		return
	}
	logger.Debug().Msgf("%s deleted", kind)
}

// waitLoadBalancerSettled polls until provisioning_status leaves PENDING_*.
func (c *Client) waitLoadBalancerSettled(ctx context.Context, lbID string) error {
	check := func(ctx context.Context) (bool, error) {
		metrics.PollAttemptsTotal.WithLabelValues("lb_settle").Inc()
		lb, err := c.GetLoadBalancer(ctx, lbID)
		if err != nil {
			return false, err
		}
		return !strings.HasPrefix(lb.ProvisioningStatus, "PENDING_"), nil
	}

	// Check once without delay; most of the time the LB is already ACTIVE.
	if done, err := check(ctx); err != nil || done {
		return err
	}

	outcome, err := poll.Until(ctx, c.poll.LBSettle, check)
	switch outcome {
	case poll.Done:
		return nil
	case poll.NotDone:
		if err == nil {
			return fmt.Errorf("load balancer %s still pending after %d checks", lbID, c.poll.LBSettle.MaxAttempts)
		}
	}
	return err
}
