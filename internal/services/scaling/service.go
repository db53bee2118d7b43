// Package scaling grows and shrinks a group of identical servers cloned
// from a base instance. Clones are named <base><suffix><index>, for
// example web-1-scale3.
package scaling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"nathanbeddoewebdev/stackgate/internal/domain"
	"nathanbeddoewebdev/stackgate/internal/log"
	"nathanbeddoewebdev/stackgate/internal/metrics"
	"nathanbeddoewebdev/stackgate/internal/openstack"

	"github.com/rs/zerolog"
)

// DefaultSuffix separates the base name from the clone index.
const DefaultSuffix = "-scale"

// ErrNoClones is returned by ScaleDown when the base has no clones left.
var ErrNoClones = fmt.Errorf("no clones to remove: %w", domain.ErrNotFound)

// Cloud is the subset of *openstack.Client the scaler needs.
type Cloud interface {
	ListServers(ctx context.Context) ([]domain.Server, error)
	FindServer(ctx context.Context, name string) (*domain.Server, error)
	Resolve(ctx context.Context, kind openstack.Kind, name string) (string, error)
	CreateServer(ctx context.Context, opts domain.CreateServerOpts) (*domain.Server, error)
	WaitForServer(ctx context.Context, id string) (*domain.Server, error)
	DeleteServer(ctx context.Context, id string) error
}

// Options controls clone naming and scale-down order.
type Options struct {
	Suffix string

	// NumericOrder makes ScaleDown remove the highest index instead of the
	// lexicographically greatest name (which ranks scale9 above scale10).
	NumericOrder bool
}

// Service runs scale operations. Operations on the same base name are
// serialised; different bases proceed in parallel.
type Service struct {
	suffix       string
	numericOrder bool
	log          zerolog.Logger

	mu    sync.Mutex
	locks map[string]*baseLock
}

type baseLock struct {
	mu   sync.Mutex
	refs int
}

// NewService returns a scaling service.
func NewService(opts Options) *Service {
	suffix := opts.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return &Service{
		suffix:       suffix,
		numericOrder: opts.NumericOrder,
		log:          log.WithComponent("scaling"),
		locks:        make(map[string]*baseLock),
	}
}

// Prefix returns the name prefix shared by all clones of base.
func (s *Service) Prefix(base string) string {
	return base + s.suffix
}

func (s *Service) lock(base string) func() {
	s.mu.Lock()
	l, ok := s.locks[base]
	if !ok {
		l = &baseLock{}
		s.locks[base] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, base)
		}
		s.mu.Unlock()
	}
}

// ScaleUp clones base once and waits for the clone to become ACTIVE.
//
// The clone copies the base's image, flavor, key pair, user data and first
// network. A clone that fails to boot is left in place and its id is named
// in the error.
func (s *Service) ScaleUp(ctx context.Context, cloud Cloud, base string) (clone *domain.Server, err error) {
	defer func() { record("up", err) }()

	unlock := s.lock(base)
	defer unlock()

	baseServer, err := cloud.FindServer(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("base instance: %w", err)
	}
	network := baseServer.PrimaryNetwork()
	if network == "" {
		return nil, fmt.Errorf("base instance %q has no network: %w", base, domain.ErrInvalidInput)
	}

	servers, err := cloud.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	name := s.Prefix(base) + strconv.Itoa(s.nextIndex(base, servers))

	networkID, err := cloud.Resolve(ctx, openstack.KindNetwork, network)
	if err != nil {
		return nil, fmt.Errorf("base network: %w", err)
	}

	userData := baseServer.Metadata[openstack.MetadataUserData]
	opts := domain.CreateServerOpts{
		Name:      name,
		ImageID:   baseServer.ImageID,
		FlavorID:  baseServer.FlavorID,
		NetworkID: networkID,
		KeyName:   baseServer.KeyName,
		UserData:  userData,
	}
	if userData != "" {
		opts.Metadata = map[string]string{openstack.MetadataUserData: userData}
	}

	logger := s.log.With().Str("base", base).Str("clone", name).Logger()
	logger.Info().Str("network", network).Msg("scaling up")

	created, err := cloud.CreateServer(ctx, opts)
	if err != nil {
		return nil, err
	}
	active, err := cloud.WaitForServer(ctx, created.ID)
	if err != nil {
		logger.Error().Err(err).Str("id", created.ID).Msg("clone did not become active")
		return created, fmt.Errorf("clone %s (%s) did not become active: %w", name, created.ID, err)
	}

	logger.Info().Str("id", active.ID).Msg("clone active")
	return active, nil
}

// ScaleDown deletes the last clone of base and waits until it is gone.
// It returns the deleted clone's name.
func (s *Service) ScaleDown(ctx context.Context, cloud Cloud, base string) (deleted string, err error) {
	defer func() { record("down", err) }()

	unlock := s.lock(base)
	defer unlock()

	servers, err := cloud.ListServers(ctx)
	if err != nil {
		return "", err
	}
	clones := s.clones(base, servers)
	if len(clones) == 0 {
		return "", fmt.Errorf("base instance %q: %w", base, ErrNoClones)
	}
	s.sortForRemoval(base, clones)
	victim := clones[0]

	logger := s.log.With().Str("base", base).Str("clone", victim.Name).Logger()
	logger.Info().Int("clones", len(clones)).Msg("scaling down")

	if err := cloud.DeleteServer(ctx, victim.ID); err != nil {
		return victim.Name, err
	}
	logger.Info().Msg("clone deleted")
	return victim.Name, nil
}

// clones returns the servers whose name starts with the clone prefix.
func (s *Service) clones(base string, servers []domain.Server) []domain.Server {
	prefix := s.Prefix(base)
	var out []domain.Server
	for _, srv := range servers {
		if strings.HasPrefix(srv.Name, prefix) {
			out = append(out, srv)
		}
	}
	return out
}

// nextIndex is count+1, bumped past the highest live index so a gap from
// an out-of-band delete never produces a name that is already taken.
func (s *Service) nextIndex(base string, servers []domain.Server) int {
	clones := s.clones(base, servers)
	next := len(clones) + 1
	for _, c := range clones {
		if idx, ok := s.index(base, c.Name); ok && idx >= next {
			next = idx + 1
		}
	}
	return next
}

// index parses the numeric suffix of a clone name.
func (s *Service) index(base, name string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(name, s.Prefix(base)))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (s *Service) sortForRemoval(base string, clones []domain.Server) {
	if !s.numericOrder {
		sort.SliceStable(clones, func(i, j int) bool { return clones[i].Name > clones[j].Name })
		return
	}
	sort.SliceStable(clones, func(i, j int) bool {
		a, aok := s.index(base, clones[i].Name)
		b, bok := s.index(base, clones[j].Name)
		if aok != bok {
			return aok
		}
		if a != b {
			return a > b
		}
		return clones[i].Name > clones[j].Name
	})
}

func record(direction string, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	metrics.ScaleOperationsTotal.WithLabelValues(direction, outcome).Inc()
}
