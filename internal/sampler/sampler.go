// Package sampler picks the input files staged into each run directory.
package sampler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/toolparam/toolparam/internal/config"
	"github.com/toolparam/toolparam/internal/objectstore"
	"github.com/toolparam/toolparam/types"
)

// Source is a population of input items that can be copied into a run
// directory.
type Source interface {
	// List returns every available item.
	List(ctx context.Context) ([]string, error)
	// Stage copies item into dir and returns the path it was written to.
	Stage(ctx context.Context, item, dir string) (string, error)
	// String describes the source for logs.
	String() string
}

// NewSource returns the source configured in cfg.Input, or nil when the
// session stages no input.
func NewSource(cfg *types.RunConfig) (Source, error) {
	if !cfg.HasInput() {
		return nil, nil
	}
	if config.IsObjectStorePath(cfg.Input.Path) {
		client, err := objectstore.NewMinIOClient(cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		return NewObjectSource(client, cfg.Input.Path)
	}
	return &LocalSource{Pattern: cfg.Input.Path}, nil
}

// Sampler draws uniform random subsets, without replacement, from a Source.
// The population is listed once and reused for every run of the session.
type Sampler struct {
	source     Source
	rng        *rand.Rand
	population []string
	listed     bool
}

// New creates a Sampler. A zero seed draws a random one. source may be nil,
// in which case Sample always returns nothing.
func New(source Source, seed int64) *Sampler {
	s := uint64(seed)
	if seed == 0 {
		s = rand.Uint64()
	}
	return &Sampler{
		source: source,
		rng:    rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15)),
	}
}

func (s *Sampler) Source() Source {
	return s.source
}

// Population lists the source on first use.
func (s *Sampler) Population(ctx context.Context) ([]string, error) {
	if s.source == nil {
		return nil, nil
	}
	if !s.listed {
		items, err := s.source.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list inputs from %s: %w", s.source, err)
		}
		s.population = items
		s.listed = true
		log.Debug().Str("source", s.source.String()).Int("items", len(items)).Msg("Listed input population")
	}
	return s.population, nil
}

// Sample returns n items. When n exceeds the population the whole population
// is returned.
func (s *Sampler) Sample(ctx context.Context, n int) ([]string, error) {
	population, err := s.Population(ctx)
	if err != nil {
		return nil, err
	}
	if n > len(population) {
		log.Warn().
			Int("requested", n).
			Int("available", len(population)).
			Msg("Requested more input files than available, using all of them")
	}
	return Choose(s.rng, population, n), nil
}

// Choose picks min(n, len(items)) distinct items uniformly at random. The
// result is sorted so scripts and logs list inputs in a stable order.
func Choose(rng *rand.Rand, items []string, n int) []string {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	if n >= len(items) {
		out := slices.Clone(items)
		slices.Sort(out)
		return out
	}

	out := make([]string, 0, n)
	for _, i := range rng.Perm(len(items))[:n] {
		out = append(out, items[i])
	}
	slices.Sort(out)
	return out
}
