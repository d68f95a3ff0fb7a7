package configuration

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/norm-revision/internal/norm"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// #region registry
// Entry binds a norm id to the kind used to synthesize its replacements.
type Entry struct {
	ID   string    `json:"id" yaml:"id"`
	Kind norm.Kind `json:"kind" yaml:"kind"`
}

// Registry is the ordered normID -> kind table of a configuration.
type Registry []Entry

// Kind returns the kind registered for id.
func (r Registry) Kind(id string) (norm.Kind, bool) {
	for _, e := range r {
		if e.ID == id {
			return e.Kind, true
		}
	}
	return 0, false
}

// IDs returns the registered ids in order.
func (r Registry) IDs() []string {
	ids := make([]string, len(r))
	for i, e := range r {
		ids[i] = e.ID
	}
	return ids
}

// #endregion registry

// #region configuration
// Configuration is one complete rule set: an ordered normID -> Norm map plus
// its registry. Configurations are immutable values; a configuration built
// from any empty norm is the canonical empty configuration.
type Configuration struct {
	registry Registry
	norms    map[string]*norm.Norm
}

// New builds a configuration from norms keyed by the registry ids. A missing
// or empty norm for any registered id yields the empty configuration.
func New(reg Registry, norms map[string]*norm.Norm) Configuration {
	if len(reg) == 0 {
		return Configuration{}
	}
	m := make(map[string]*norm.Norm, len(reg))
	for _, e := range reg {
		n, ok := norms[e.ID]
		if !ok || n.IsEmpty() {
			return Configuration{}
		}
		m[e.ID] = n
	}
	return Configuration{registry: append(Registry(nil), reg...), norms: m}
}

// FromNorms builds a configuration registering each norm under its own id and kind.
func FromNorms(ns ...*norm.Norm) Configuration {
	reg := make(Registry, 0, len(ns))
	m := make(map[string]*norm.Norm, len(ns))
	for _, n := range ns {
		if n == nil {
			return Configuration{}
		}
		reg = append(reg, Entry{ID: n.ID(), Kind: n.Kind()})
		m[n.ID()] = n
	}
	return New(reg, m)
}

// IsEmpty reports whether this is the empty configuration.
func (c Configuration) IsEmpty() bool {
	return len(c.norms) == 0
}

// Len returns the number of norms.
func (c Configuration) Len() int {
	return len(c.norms)
}

// Registry returns a copy of the registry.
func (c Configuration) Registry() Registry {
	return append(Registry(nil), c.registry...)
}

// Get returns the norm registered under id.
func (c Configuration) Get(id string) (*norm.Norm, bool) {
	n, ok := c.norms[id]
	return n, ok
}

// Norms returns the norms in registry order.
func (c Configuration) Norms() []*norm.Norm {
	out := make([]*norm.Norm, 0, len(c.registry))
	for _, e := range c.registry {
		out = append(out, c.norms[e.ID])
	}
	return out
}

// With returns a copy with the norm under id replaced. Replacing with an
// empty norm yields the empty configuration.
func (c Configuration) With(id string, n *norm.Norm) Configuration {
	m := make(map[string]*norm.Norm, len(c.norms))
	for k, v := range c.norms {
		m[k] = v
	}
	m[id] = n
	return New(c.registry, m)
}

// #endregion configuration

// #region identity

// String renders "id1: (...), id2: (...)" in registry order.
func (c Configuration) String() string {
	if c.IsEmpty() {
		return "{}"
	}
	parts := make([]string, 0, len(c.registry))
	for _, e := range c.registry {
		parts = append(parts, fmt.Sprintf("%s: %s", e.ID, c.norms[e.ID].Key()))
	}
	return strings.Join(parts, ", ")
}

// Key renders the entries sorted by id. Structurally equal configurations
// built independently share a Key.
func (c Configuration) Key() string {
	if c.IsEmpty() {
		return "{}"
	}
	ids := make([]string, 0, len(c.norms))
	for id := range c.norms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s: %s", id, c.norms[id].Key())
	}
	return strings.Join(parts, ", ")
}

// Equal compares ids and norms structurally.
func (c Configuration) Equal(o Configuration) bool {
	if len(c.norms) != len(o.norms) {
		return false
	}
	for id, n := range c.norms {
		m, ok := o.norms[id]
		if !ok || !n.Equal(m) {
			return false
		}
	}
	return true
}

// #endregion identity

// #region labeling

// LabelTraces returns copies of traces carrying one violation label per norm.
func (c Configuration) LabelTraces(traces []trace.Trace) []trace.Trace {
	out := make([]trace.Trace, len(traces))
	for i, t := range traces {
		labeled := t.Clone()
		if labeled.NormViolated == nil {
			labeled.NormViolated = make(map[string]bool, len(c.norms))
		}
		for _, e := range c.registry {
			labeled.NormViolated[e.ID] = c.norms[e.ID].Violated(t)
		}
		out[i] = labeled
	}
	return out
}

// #endregion labeling
