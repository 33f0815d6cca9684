package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/logging"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/repositories"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/retry"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/services/riskmodels"
)

// defaultSnapshotLimit bounds ListSnapshots when the caller passes no limit.
const defaultSnapshotLimit = 20

// maxLoggedErrorLength caps model error messages in logs; the full text stays in the result.
const maxLoggedErrorLength = 500

// RunOutcome is the result of a single model run plus its stored snapshot, if any.
type RunOutcome struct {
	Result     *riskmodels.ModelResult `json:"result"`
	SnapshotID *int64                  `json:"snapshot_id,omitempty"`
}

// Evaluation is the combined outcome of several model runs for one mission.
type Evaluation struct {
	RunID      uuid.UUID                 `json:"run_id"`
	MissionID  int64                     `json:"mission_id"`
	Results    []*riskmodels.ModelResult `json:"results"`
	Succeeded  int                       `json:"succeeded"`
	Failed     int                       `json:"failed"`
	SnapshotID *int64                    `json:"snapshot_id,omitempty"`
}

// ModelRunService executes registered models with stored parameter presets
// and optionally persists their results.
type ModelRunService interface {
	// ListModels returns the catalog of registered models in registration order.
	ListModels() []riskmodels.ModelInfo

	// GetModel returns one model's catalog entry.
	// Returns apperrors.ErrModelNotFound for unknown ids.
	GetModel(modelID string) (*riskmodels.ModelInfo, error)

	// Run executes one model. Parameters are layered as schema defaults, then
	// the stored preset, then params. Returns ErrModelNotFound, ErrModelDisabled
	// or ErrInvalidParams before running; model failures are reported in the
	// result, not as an error.
	Run(ctx context.Context, missionID int64, modelID string, params map[string]any, snapshot bool) (*RunOutcome, error)

	// RunAll executes modelIDs (every enabled model when empty) in order and
	// stores one combined snapshot when requested. params is keyed by model id.
	RunAll(ctx context.Context, missionID int64, modelIDs []string, params map[string]map[string]any, snapshot bool) (*Evaluation, error)

	// SaveModelConfig validates and stores a parameter preset.
	SaveModelConfig(ctx context.Context, modelID string, enabled bool, params map[string]any) (*models.ModelConfig, error)

	// ListModelConfigs returns every stored preset.
	ListModelConfigs(ctx context.Context) ([]*models.ModelConfig, error)

	// ListSnapshots returns a mission's stored results, newest first.
	ListSnapshots(ctx context.Context, missionID int64, limit int) ([]*models.ResultSnapshot, error)
}

type modelRunService struct {
	registry   *riskmodels.Registry
	configs    repositories.ModelConfigRepository
	snapshots  repositories.ResultSnapshotRepository
	runTimeout time.Duration
	retryCfg   *retry.Config
	logger     *zap.Logger
}

// NewModelRunService creates a new model run service. runTimeout <= 0 means
// runs are bounded only by the caller's context.
func NewModelRunService(
	registry *riskmodels.Registry,
	configs repositories.ModelConfigRepository,
	snapshots repositories.ResultSnapshotRepository,
	runTimeout time.Duration,
	logger *zap.Logger,
) ModelRunService {
	return &modelRunService{
		registry:   registry,
		configs:    configs,
		snapshots:  snapshots,
		runTimeout: runTimeout,
		retryCfg:   retry.DefaultConfig(),
		logger:     logger.Named("model-run"),
	}
}

var _ ModelRunService = (*modelRunService)(nil)

func (s *modelRunService) ListModels() []riskmodels.ModelInfo {
	return s.registry.Infos()
}

func (s *modelRunService) GetModel(modelID string) (*riskmodels.ModelInfo, error) {
	m, ok := s.registry.Get(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrModelNotFound, modelID)
	}
	info := riskmodels.InfoOf(m)
	return &info, nil
}

func (s *modelRunService) Run(ctx context.Context, missionID int64, modelID string, params map[string]any, snapshot bool) (*RunOutcome, error) {
	m, ok := s.registry.Get(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrModelNotFound, modelID)
	}

	merged, err := s.resolveParams(ctx, m, params)
	if err != nil {
		return nil, err
	}

	result := s.execute(ctx, m, missionID, merged)
	outcome := &RunOutcome{Result: result}

	if snapshot && result.Success {
		id, err := s.storeSnapshot(ctx, missionID, result.RunID, []*riskmodels.ModelResult{result})
		if err != nil {
			return nil, err
		}
		outcome.SnapshotID = &id
	}
	return outcome, nil
}

func (s *modelRunService) RunAll(ctx context.Context, missionID int64, modelIDs []string, params map[string]map[string]any, snapshot bool) (*Evaluation, error) {
	var selected []riskmodels.AnalyticalModel
	explicit := len(modelIDs) > 0
	if explicit {
		for _, id := range modelIDs {
			m, ok := s.registry.Get(id)
			if !ok {
				return nil, fmt.Errorf("%w: %s", apperrors.ErrModelNotFound, id)
			}
			selected = append(selected, m)
		}
	} else {
		selected = s.registry.List()
	}

	eval := &Evaluation{
		RunID:     uuid.New(),
		MissionID: missionID,
		Results:   make([]*riskmodels.ModelResult, 0, len(selected)),
	}

	// Models share the request's database connection, so they run one at a time.
	for _, m := range selected {
		merged, err := s.resolveParams(ctx, m, params[m.ID()])
		switch {
		case errors.Is(err, apperrors.ErrModelDisabled) && !explicit:
			continue
		case err != nil && (errors.Is(err, apperrors.ErrModelDisabled) || errors.Is(err, apperrors.ErrInvalidParams)):
			eval.Results = append(eval.Results, riskmodels.Failed(m, err))
			eval.Failed++
			continue
		case err != nil:
			return nil, err
		}

		result := s.execute(ctx, m, missionID, merged)
		eval.Results = append(eval.Results, result)
		if result.Success {
			eval.Succeeded++
		} else {
			eval.Failed++
		}
	}

	if snapshot && eval.Succeeded > 0 {
		id, err := s.storeSnapshot(ctx, missionID, eval.RunID, eval.Results)
		if err != nil {
			return nil, err
		}
		eval.SnapshotID = &id
	}

	s.logger.Info("Evaluation complete",
		zap.Int64("mission_id", missionID),
		zap.String("run_id", eval.RunID.String()),
		zap.Int("succeeded", eval.Succeeded),
		zap.Int("failed", eval.Failed))

	return eval, nil
}

// resolveParams layers defaults, the stored preset and request params, and
// validates the result against the model's schema.
func (s *modelRunService) resolveParams(ctx context.Context, m riskmodels.AnalyticalModel, params map[string]any) (riskmodels.Params, error) {
	schema := m.ParamSchema()

	var stored map[string]any
	cfg, err := s.configs.Get(ctx, m.ID())
	switch {
	case err == nil:
		if !cfg.Enabled {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrModelDisabled, m.ID())
		}
		stored = cfg.Params
	case errors.Is(err, apperrors.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load config for model %s: %w", m.ID(), err)
	}

	merged := riskmodels.MergeParams(riskmodels.DefaultParams(schema), stored, params)
	if ok, reason := riskmodels.ValidateParams(schema, merged); !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidParams, reason)
	}
	return riskmodels.Params(merged), nil
}

func (s *modelRunService) execute(ctx context.Context, m riskmodels.AnalyticalModel, missionID int64, params riskmodels.Params) *riskmodels.ModelResult {
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	result := m.Run(ctx, riskmodels.RunContext{MissionID: missionID, Params: params})

	fields := []zap.Field{
		zap.String("model_id", m.ID()),
		zap.Int64("mission_id", missionID),
		zap.String("run_id", result.RunID.String()),
		zap.Int64("duration_ms", result.DurationMS),
	}
	if result.Success {
		s.logger.Info("Model run succeeded", fields...)
	} else {
		s.logger.Error("Model run failed", append(fields, zap.String("error", logging.TruncateString(result.ErrorMessage, maxLoggedErrorLength)))...)
	}
	return result
}

// storeSnapshot persists results keyed by model id.
func (s *modelRunService) storeSnapshot(ctx context.Context, missionID int64, runID uuid.UUID, results []*riskmodels.ModelResult) (int64, error) {
	byModel := make(map[string]*riskmodels.ModelResult, len(results))
	ids := make([]string, 0, len(results))
	for _, r := range results {
		byModel[r.ModelID] = r
		ids = append(ids, r.ModelID)
	}
	raw, err := json.Marshal(byModel)
	if err != nil {
		return 0, fmt.Errorf("failed to encode results: %w", err)
	}

	snap := &models.ResultSnapshot{
		MissionID: missionID,
		RunID:     runID,
		ModelIDs:  ids,
		Results:   raw,
	}
	err = retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		return s.snapshots.Create(ctx, snap)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store result snapshot: %w", err)
	}
	return snap.ID, nil
}

func (s *modelRunService) SaveModelConfig(ctx context.Context, modelID string, enabled bool, params map[string]any) (*models.ModelConfig, error) {
	m, ok := s.registry.Get(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrModelNotFound, modelID)
	}
	if params == nil {
		params = map[string]any{}
	}
	if ok, reason := riskmodels.ValidateParams(m.ParamSchema(), params); !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidParams, reason)
	}

	cfg := &models.ModelConfig{ModelID: modelID, Enabled: enabled, Params: params}
	if err := s.configs.Upsert(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save model config: %w", err)
	}

	s.logger.Info("Saved model config",
		zap.String("model_id", modelID),
		zap.Bool("enabled", enabled))
	return cfg, nil
}

func (s *modelRunService) ListModelConfigs(ctx context.Context) ([]*models.ModelConfig, error) {
	cfgs, err := s.configs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list model configs: %w", err)
	}
	return cfgs, nil
}

func (s *modelRunService) ListSnapshots(ctx context.Context, missionID int64, limit int) ([]*models.ResultSnapshot, error) {
	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	snaps, err := s.snapshots.ListByMission(ctx, missionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snaps, nil
}
