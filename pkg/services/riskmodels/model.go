// Package riskmodels implements the analytical risk models and the registry
// that exposes them for discovery, parameter introspection and execution.
package riskmodels

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/apperrors"
)

// Model categories used for grouping in the catalog.
const (
	CategoryRiskAssessment          = "Risk Assessment"
	CategoryUncertaintyAnalysis     = "Uncertainty Analysis"
	CategoryQuantitativeAnalysis    = "Quantitative Analysis"
	CategoryComprehensiveEvaluation = "Comprehensive Evaluation"
)

// AnalyticalModel is implemented by every risk model.
// Run never panics and never returns nil: failures come back as a
// ModelResult with Success=false and a readable ErrorMessage.
type AnalyticalModel interface {
	ID() string
	Name() string
	Description() string
	Category() string
	ParamSchema() []ParamSpec
	Run(ctx context.Context, rc RunContext) *ModelResult
}

// ============================================================================
// Parameters
// ============================================================================

// ParamType is the declared type of a model parameter.
type ParamType string

const (
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamString ParamType = "string"
	ParamBool   ParamType = "bool"
	ParamEnum   ParamType = "enum"
)

// ParamSpec describes one model parameter for form building and validation.
type ParamSpec struct {
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Type        ParamType `json:"type"`
	Default     any       `json:"default"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
	EnumValues  []string  `json:"enum_values,omitempty"`
	Description string    `json:"description,omitempty"`
}

func bound(v float64) *float64 {
	return &v
}

// Params is the parameter dictionary passed to a model run.
// Accessors coerce loosely typed values (JSON numbers, numeric strings) and
// return def when the key is absent or cannot be coerced.
type Params map[string]any

// Int returns the named parameter as an int.
func (p Params) Int(name string, def int) int {
	v, ok := p[name]
	if !ok || v == nil {
		return def
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return i
}

// Float returns the named parameter as a float64.
func (p Params) Float(name string, def float64) float64 {
	v, ok := p[name]
	if !ok || v == nil {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

// Bool returns the named parameter as a bool.
func (p Params) Bool(name string, def bool) bool {
	v, ok := p[name]
	if !ok || v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// String returns the named parameter as a string.
func (p Params) String(name string, def string) string {
	v, ok := p[name]
	if !ok || v == nil {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil || s == "" {
		return def
	}
	return s
}

// ============================================================================
// Run Context and Result
// ============================================================================

// RunContext carries the inputs of one model invocation.
type RunContext struct {
	MissionID int64
	Params    Params
}

// ModelResult is the outcome of one model invocation.
type ModelResult struct {
	RunID           uuid.UUID `json:"run_id"`
	ModelID         string    `json:"model_id"`
	ModelName       string    `json:"model_name"`
	Success         bool      `json:"success"`
	ErrorMessage    string    `json:"error_message"`
	Data            any       `json:"data"`
	Recommendations []string  `json:"recommendations"`
	DurationMS      int64     `json:"duration_ms"`
}

// Failed builds a failed result for a model that could not be invoked at all.
func Failed(m AnalyticalModel, err error) *ModelResult {
	return &ModelResult{
		RunID:           uuid.New(),
		ModelID:         m.ID(),
		ModelName:       m.Name(),
		ErrorMessage:    err.Error(),
		Recommendations: []string{},
	}
}

// ============================================================================
// Base Model
// ============================================================================

// computeFunc does a model's work. It returns the result payload and
// recommendations, or an error that becomes a failed ModelResult.
type computeFunc func(ctx context.Context, rc RunContext) (any, []string, error)

// baseModel provides the descriptive half of AnalyticalModel and the guarded
// executor every model runs through.
type baseModel struct {
	id          string
	name        string
	description string
	category    string
	schema      []ParamSpec
	logger      *zap.Logger
}

func newBaseModel(id, name, description, category string, schema []ParamSpec, logger *zap.Logger) baseModel {
	return baseModel{
		id:          id,
		name:        name,
		description: description,
		category:    category,
		schema:      schema,
		logger:      logger.Named(id),
	}
}

func (b *baseModel) ID() string          { return b.id }
func (b *baseModel) Name() string        { return b.name }
func (b *baseModel) Description() string { return b.description }
func (b *baseModel) Category() string    { return b.category }

// ParamSchema returns a copy of the model's parameter specs in declaration order.
func (b *baseModel) ParamSchema() []ParamSpec {
	out := make([]ParamSpec, len(b.schema))
	copy(out, b.schema)
	return out
}

// execute runs fn with panic recovery and converts every failure into a
// failed ModelResult.
func (b *baseModel) execute(ctx context.Context, rc RunContext, fn computeFunc) (result *ModelResult) {
	start := time.Now()
	result = &ModelResult{
		RunID:           uuid.New(),
		ModelID:         b.id,
		ModelName:       b.name,
		Recommendations: []string{},
	}
	logger := b.logger.With(
		zap.Int64("mission_id", rc.MissionID),
		zap.String("run_id", result.RunID.String()),
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Model run panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			result.Success = false
			result.Data = nil
			result.ErrorMessage = fmt.Sprintf("internal error: %v", r)
		}
		result.DurationMS = time.Since(start).Milliseconds()
	}()

	if rc.MissionID <= 0 {
		result.ErrorMessage = apperrors.ErrMissingMission.Error()
		return result
	}
	if rc.Params == nil {
		rc.Params = Params{}
	}

	data, recs, err := fn(ctx, rc)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("Model run cancelled", zap.Error(err))
		} else {
			logger.Error("Model run failed", zap.Error(err))
		}
		result.ErrorMessage = err.Error()
		return result
	}

	result.Success = true
	result.Data = data
	if recs != nil {
		result.Recommendations = recs
	}
	logger.Info("Model run completed", zap.Duration("duration", time.Since(start)))
	return result
}
