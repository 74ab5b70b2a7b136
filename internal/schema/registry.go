package schema

import (
	"maps"
	"slices"
)

// Registry is the read-only lookup table built from a validated Config.
type Registry struct {
	cfg     *Config
	ids     []string
	sources map[string]*Source
	refs    map[string]map[string]string
}

// NewRegistry builds a registry from cfg. cfg is validated first.
func NewRegistry(cfg *Config) (*Registry, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		cfg:     cfg,
		ids:     slices.Sorted(maps.Keys(cfg.Sources)),
		sources: cfg.Sources,
		refs:    make(map[string]map[string]string, len(cfg.Relationships)),
	}
	for id, rel := range cfg.Relationships {
		r.refs[id] = maps.Clone(rel.References)
	}
	return r, nil
}

// DefaultRegistry returns the registry of the embedded declaration.
func DefaultRegistry() (*Registry, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	return NewRegistry(cfg)
}

// Source returns the declaration of a source.
func (r *Registry) Source(id string) (*Source, bool) {
	s, ok := r.sources[id]
	return s, ok
}

// IDs returns every source identifier in sorted order.
func (r *Registry) IDs() []string {
	return slices.Clone(r.ids)
}

// Reference returns the target source declared for field of source id.
func (r *Registry) Reference(id, field string) (string, bool) {
	target, ok := r.refs[id][field]
	return target, ok
}

// References returns the reference table of a source.
func (r *Registry) References(id string) map[string]string {
	return maps.Clone(r.refs[id])
}

// Metrics returns the dashboard metrics.
func (r *Registry) Metrics() []Metric {
	return slices.Clone(r.cfg.Dashboard.Metrics)
}

// Metric looks up a dashboard metric by id.
func (r *Registry) Metric(id string) (Metric, bool) {
	for _, m := range r.cfg.Dashboard.Metrics {
		if m.ID == id {
			return m, true
		}
	}
	return Metric{}, false
}

// DefaultView returns the source shown first, or the first source id.
func (r *Registry) DefaultView() string {
	if r.cfg.DefaultView != "" {
		return r.cfg.DefaultView
	}
	return r.ids[0]
}

// Config returns the underlying declaration.
func (r *Registry) Config() *Config {
	return r.cfg
}
