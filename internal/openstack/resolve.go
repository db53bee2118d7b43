package openstack

import (
	"context"
	"fmt"
	"sync"

	"nathanbeddoewebdev/stackgate/internal/domain"
)

// Kind names a resource type that can be resolved by name.
type Kind string

const (
	KindServer       Kind = "server"
	KindImage        Kind = "image"
	KindFlavor       Kind = "flavor"
	KindNetwork      Kind = "network"
	KindSubnet       Kind = "subnet"
	KindRouter       Kind = "router"
	KindLoadBalancer Kind = "load balancer"
)

type namedRef struct {
	ID   string
	Name string
}

type memoKey struct {
	cloud string
	kind  Kind
}

// Resolver memoises list results for the lifetime of one inbound request.
// It must not be shared across requests: names are mutable and a stale
// list would resolve to deleted resources.
type Resolver struct {
	mu    sync.Mutex
	lists map[memoKey][]namedRef
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{lists: make(map[memoKey][]namedRef)}
}

type resolverKey struct{}

// WithResolver returns a context carrying a fresh per-request resolver.
func WithResolver(ctx context.Context) context.Context {
	return context.WithValue(ctx, resolverKey{}, NewResolver())
}

// ResolverFrom returns the resolver stored in ctx, or nil.
func ResolverFrom(ctx context.Context) *Resolver {
	r, _ := ctx.Value(resolverKey{}).(*Resolver)
	return r
}

// forget drops the memoised list of kind, used after a create or delete
// changes it.
func (r *Resolver) forget(cloud string, kind Kind) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.lists, memoKey{cloud, kind})
	r.mu.Unlock()
}

func (r *Resolver) list(ctx context.Context, cloud string, kind Kind, fetch func(context.Context) ([]namedRef, error)) ([]namedRef, error) {
	if r == nil {
		return fetch(ctx)
	}
	key := memoKey{cloud, kind}

	r.mu.Lock()
	refs, ok := r.lists[key]
	r.mu.Unlock()
	if ok {
		return refs, nil
	}

	refs, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.lists[key] = refs
	r.mu.Unlock()
	return refs, nil
}

// Resolve maps a human name to a platform ID. With duplicate names the
// first match in list order wins. Images and flavors also match by ID.
func (c *Client) Resolve(ctx context.Context, kind Kind, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%s name is required: %w", kind, domain.ErrInvalidInput)
	}

	fetch, err := c.lister(kind)
	if err != nil {
		return "", err
	}
	refs, err := ResolverFrom(ctx).list(ctx, c.cloud, kind, fetch)
	if err != nil {
		return "", err
	}

	for _, ref := range refs {
		if ref.Name == name {
			return ref.ID, nil
		}
	}
	if kind == KindImage || kind == KindFlavor {
		for _, ref := range refs {
			if ref.ID == name {
				return ref.ID, nil
			}
		}
	}
	return "", fmt.Errorf("%s %q: %w", kind, name, domain.ErrNotFound)
}

func (c *Client) lister(kind Kind) (func(context.Context) ([]namedRef, error), error) {
	switch kind {
	case KindServer:
		return func(ctx context.Context) ([]namedRef, error) {
			items, err := c.ListServers(ctx)
			return refsOf(items, err, func(s domain.Server) namedRef { return namedRef{s.ID, s.Name} })
		}, nil
	case KindImage:
		return func(ctx context.Context) ([]namedRef, error) {
			items, err := c.ListImages(ctx)
			return refsOf(items, err, func(i domain.Image) namedRef { return namedRef{i.ID, i.Name} })
		}, nil
	case KindFlavor:
		return func(ctx context.Context) ([]namedRef, error) {
			items, err := c.ListFlavors(ctx)
			return refsOf(items, err, func(f domain.Flavor) namedRef { return namedRef{f.ID, f.Name} })
		}, nil
	case KindNetwork:
		return func(ctx context.Context) ([]namedRef, error) {
			items, err := c.ListNetworks(ctx)
			return refsOf(items, err, func(n domain.Network) namedRef { return namedRef{n.ID, n.Name} })
		}, nil
	case KindSubnet:
		return func(ctx context.Context) ([]namedRef, error) {
			items, err := c.ListSubnets(ctx)
			return refsOf(items, err, func(s domain.Subnet) namedRef { return namedRef{s.ID, s.Name} })
		}, nil
	case KindRouter:
		return func(ctx context.Context) ([]namedRef, error) {
			items, err := c.ListRouters(ctx)
			return refsOf(items, err, func(r domain.Router) namedRef { return namedRef{r.ID, r.Name} })
		}, nil
	case KindLoadBalancer:
		return func(ctx context.Context) ([]namedRef, error) {
			items, err := c.ListLoadBalancers(ctx)
			return refsOf(items, err, func(lb domain.LoadBalancer) namedRef { return namedRef{lb.ID, lb.Name} })
		}, nil
	}
	return nil, fmt.Errorf("unknown resource kind %q: %w", kind, domain.ErrInvalidInput)
}

func refsOf[T any](items []T, err error, ref func(T) namedRef) ([]namedRef, error) {
	if err != nil {
		return nil, err
	}
	refs := make([]namedRef, 0, len(items))
	for _, item := range items {
		refs = append(refs, ref(item))
	}
	return refs, nil
}
