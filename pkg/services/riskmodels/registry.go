package riskmodels

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
)

// ErrModelAlreadyRegistered is returned when a model id is registered twice.
var ErrModelAlreadyRegistered = errors.New("model already registered")

// ModelInfo describes a registered model for catalog listings.
type ModelInfo struct {
	ModelID     string      `json:"model_id"`
	ModelName   string      `json:"model_name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	ParamSchema []ParamSpec `json:"param_schema"`
}

// InfoOf returns the catalog description of a model.
func InfoOf(m AnalyticalModel) ModelInfo {
	return ModelInfo{
		ModelID:     m.ID(),
		ModelName:   m.Name(),
		Description: m.Description(),
		Category:    m.Category(),
		ParamSchema: m.ParamSchema(),
	}
}

// Registry holds one instance per model id. It is constructed once at
// startup and passed to the components that need model lookup.
// Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string]AnalyticalModel
	order  []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]AnalyticalModel)}
}

// Register adds a model. Returns ErrModelAlreadyRegistered if the id is taken.
func (r *Registry) Register(m AnalyticalModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[m.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrModelAlreadyRegistered, m.ID())
	}
	r.models[m.ID()] = m
	r.order = append(r.order, m.ID())
	return nil
}

// MustRegister is Register for startup wiring; it panics on a duplicate id.
func (r *Registry) MustRegister(m AnalyticalModel) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Unregister removes a model. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[id]; !ok {
		return
	}
	delete(r.models, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
}

// Get returns the model registered under id.
func (r *Registry) Get(id string) (AnalyticalModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	return m, ok
}

// List returns all models in registration order.
func (r *Registry) List() []AnalyticalModel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AnalyticalModel, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}

// IDs returns the registered model ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// ByCategory returns the models of one category in registration order.
func (r *Registry) ByCategory(category string) []AnalyticalModel {
	var out []AnalyticalModel
	for _, m := range r.List() {
		if m.Category() == category {
			out = append(out, m)
		}
	}
	return out
}

// Infos returns catalog entries for all models in registration order.
func (r *Registry) Infos() []ModelInfo {
	models := r.List()
	out := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		out = append(out, InfoOf(m))
	}
	return out
}

// ============================================================================
// Parameter Validation
// ============================================================================

// ValidateParams checks supplied values against the schema. Absent keys and
// keys the schema does not declare are accepted; defaults apply to them.
// Returns false and a readable reason on the first violation.
func ValidateParams(schema []ParamSpec, params map[string]any) (bool, string) {
	for _, spec := range schema {
		value, ok := params[spec.Name]
		if !ok || value == nil {
			continue
		}

		label := spec.Label
		if label == "" {
			label = spec.Name
		}

		switch spec.Type {
		case ParamInt:
			n, ok := asNumber(value)
			if !ok || n != math.Trunc(n) {
				return false, fmt.Sprintf("parameter %s must be an integer", label)
			}
			if reason := checkBounds(spec, label, n); reason != "" {
				return false, reason
			}

		case ParamFloat:
			n, ok := asNumber(value)
			if !ok {
				return false, fmt.Sprintf("parameter %s must be a number", label)
			}
			if reason := checkBounds(spec, label, n); reason != "" {
				return false, reason
			}

		case ParamBool:
			if _, ok := value.(bool); !ok {
				return false, fmt.Sprintf("parameter %s must be true or false", label)
			}

		case ParamString:
			if _, ok := value.(string); !ok {
				return false, fmt.Sprintf("parameter %s must be a string", label)
			}

		case ParamEnum:
			s, ok := value.(string)
			if !ok || !slices.Contains(spec.EnumValues, s) {
				return false, fmt.Sprintf("parameter %s must be one of %v", label, spec.EnumValues)
			}
		}
	}
	return true, ""
}

func checkBounds(spec ParamSpec, label string, n float64) string {
	if spec.Min != nil && n < *spec.Min {
		return fmt.Sprintf("parameter %s must not be less than %s", label, formatBound(*spec.Min))
	}
	if spec.Max != nil && n > *spec.Max {
		return fmt.Sprintf("parameter %s must not be greater than %s", label, formatBound(*spec.Max))
	}
	return ""
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// asNumber accepts Go numeric types and json.Number. Strings and bools are
// not numbers here even though Params accessors would coerce them.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// DefaultParams returns the schema defaults keyed by parameter name.
func DefaultParams(schema []ParamSpec) map[string]any {
	out := make(map[string]any, len(schema))
	for _, spec := range schema {
		out[spec.Name] = spec.Default
	}
	return out
}

// MergeParams layers overrides onto base, later layers winning. Inputs are not modified.
func MergeParams(base map[string]any, overrides ...map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for _, o := range overrides {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}
