package model

import "fmt"

// Endpoint binds a built-in record name to the host/port it is deployed on,
// with optional per-deployment overrides. It is the registry-facing view of
// one config file entry.
type Endpoint struct {
	Name string
	Host string
	Port int

	// Voice and Speed override the record's TTS defaults when non-zero.
	Voice string
	Speed float64

	// Sampling overrides for LLM records. Nil fields keep the record default.
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Registry holds the resolved model set for the process lifetime. It is
// immutable after construction; only the Status fields of its models mutate.
type Registry struct {
	models []*Model
	byName map[string]*Model
}

// NewRegistry resolves each endpoint against the built-in records and returns
// the process-wide registry. Unknown record names and duplicate resolve names
// are fatal configuration errors.
func NewRegistry(endpoints []Endpoint) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Model, len(endpoints))}

	for i, ep := range endpoints {
		rec, ok := RecordByName(ep.Name)
		if !ok {
			return nil, fmt.Errorf("model: endpoint %d: no record named %q", i, ep.Name)
		}
		if _, dup := r.byName[rec.ResolveName]; dup {
			return nil, fmt.Errorf("model: duplicate model %q", rec.ResolveName)
		}

		if ep.Voice != "" {
			rec.Voice = ep.Voice
		}
		if ep.Speed != 0 {
			rec.Speed = ep.Speed
		}
		if ep.Temperature != nil {
			rec.Sampling.Temperature = ep.Temperature
		}
		if ep.TopP != nil {
			rec.Sampling.TopP = ep.TopP
		}
		if ep.MaxTokens != nil {
			rec.Sampling.MaxTokens = ep.MaxTokens
		}

		m := &Model{
			Record: rec,
			Host:   ep.Host,
			Port:   ep.Port,
			Status: NewStatus(),
		}
		r.models = append(r.models, m)
		r.byName[rec.ResolveName] = m
	}

	return r, nil
}

// Models returns all registered models in config order.
func (r *Registry) Models() []*Model {
	return r.models
}

// ByName returns the model with the given resolve name.
func (r *Registry) ByName(name string) (*Model, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// OfKind returns all registered models of the given kind.
func (r *Registry) OfKind(kind Kind) []*Model {
	var out []*Model
	for _, m := range r.models {
		if m.Record.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}
