package adapter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/toolparam/toolparam/internal/session"
	"github.com/toolparam/toolparam/internal/templates"
	"github.com/toolparam/toolparam/types"
)

// Adapter defines the tool-specific parts of a benchmarking session.
type Adapter interface {
	// Type returns the canonical tool_type for this adapter (e.g. "DiaNN").
	Type() string

	// Aliases are additional tool_type values accepted for this adapter.
	Aliases() []string

	// Validate checks tool-specific configuration: run-mode, required
	// auxiliary files. It returns one message per problem.
	Validate(cfg *types.RunConfig) []string

	// Enrich applies tool defaults to the configuration once, before the
	// session starts. The config is read-only afterwards.
	Enrich(cfg *types.RunConfig)

	// Template builds the session batch template.
	Template(ctx *session.Context) (*templates.Template, error)

	// Parameters returns the placeholder values for one run.
	Parameters(ctx *session.Context, run *session.Run) (map[string]string, error)

	// BeforeSubmit runs after staging and before rendering. It may write
	// companion files into the run directory and adjust values.
	BeforeSubmit(ctx *session.Context, run *session.Run, values map[string]string) error
}

// Registry holds registered adapters, keyed by lower-cased tool_type.
type Registry struct {
	adapters map[string]Adapter
	aliases  map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		aliases:  make(map[string]string),
	}
}

// DefaultRegistry returns a registry with every built-in adapter.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&GenericAdapter{})
	r.Register(&DiaNNAdapter{})
	r.Register(&MaxQuantAdapter{})
	return r
}

// Register adds an adapter. It panics if the type or an alias is already
// taken, which indicates an initialization error.
func (r *Registry) Register(a Adapter) {
	key := strings.ToLower(a.Type())
	if _, exists := r.lookup(key); exists {
		panic(fmt.Sprintf("adapter for tool_type %q already registered", a.Type()))
	}
	r.adapters[key] = a

	for _, alias := range a.Aliases() {
		akey := strings.ToLower(alias)
		if _, exists := r.lookup(akey); exists {
			panic(fmt.Sprintf("adapter alias %q already registered", alias))
		}
		r.aliases[akey] = key
	}
	log.Debug().Str("tool_type", a.Type()).Strs("aliases", a.Aliases()).Msg("Registered tool adapter")
}

// Get retrieves an adapter by tool_type or alias, ignoring case.
func (r *Registry) Get(toolType string) (Adapter, bool) {
	return r.lookup(strings.ToLower(toolType))
}

func (r *Registry) lookup(key string) (Adapter, bool) {
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}
	a, ok := r.adapters[key]
	return a, ok
}

// MustGet retrieves an adapter and panics if none is registered. Use only
// after the config has been validated.
func (r *Registry) MustGet(toolType string) Adapter {
	a, ok := r.Get(toolType)
	if !ok {
		panic(fmt.Sprintf("critical error: no adapter registered for tool_type %q", toolType))
	}
	return a
}

// GetRegisteredTypes returns the sorted canonical tool types.
func (r *Registry) GetRegisteredTypes() []string {
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, a.Type())
	}
	sort.Strings(names)
	return names
}
