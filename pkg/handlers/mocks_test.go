package handlers

import (
	"context"
	"net/http"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/services"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/services/riskmodels"
)

// passthroughScope stands in for the database scope middleware.
func passthroughScope(next http.HandlerFunc) http.HandlerFunc { return next }

type mockModelRunService struct {
	infos       []riskmodels.ModelInfo
	outcome     *services.RunOutcome
	evaluation  *services.Evaluation
	snapshots   []*models.ResultSnapshot
	configs     []*models.ModelConfig
	err         error
	lastMission int64
	lastModel   string
	lastParams  map[string]any
	lastSnap    bool
	lastIDs     []string
	lastLimit   int
	lastEnabled bool
}

func (m *mockModelRunService) ListModels() []riskmodels.ModelInfo { return m.infos }

func (m *mockModelRunService) GetModel(modelID string) (*riskmodels.ModelInfo, error) {
	for i := range m.infos {
		if m.infos[i].ModelID == modelID {
			return &m.infos[i], nil
		}
	}
	return nil, apperrors.ErrModelNotFound
}

func (m *mockModelRunService) Run(ctx context.Context, missionID int64, modelID string, params map[string]any, snapshot bool) (*services.RunOutcome, error) {
	m.lastMission, m.lastModel, m.lastParams, m.lastSnap = missionID, modelID, params, snapshot
	if m.err != nil {
		return nil, m.err
	}
	return m.outcome, nil
}

func (m *mockModelRunService) RunAll(ctx context.Context, missionID int64, modelIDs []string, params map[string]map[string]any, snapshot bool) (*services.Evaluation, error) {
	m.lastMission, m.lastIDs, m.lastSnap = missionID, modelIDs, snapshot
	if m.err != nil {
		return nil, m.err
	}
	return m.evaluation, nil
}

func (m *mockModelRunService) SaveModelConfig(ctx context.Context, modelID string, enabled bool, params map[string]any) (*models.ModelConfig, error) {
	m.lastModel, m.lastEnabled, m.lastParams = modelID, enabled, params
	if m.err != nil {
		return nil, m.err
	}
	return &models.ModelConfig{ModelID: modelID, Enabled: enabled, Params: params}, nil
}

func (m *mockModelRunService) ListModelConfigs(ctx context.Context) ([]*models.ModelConfig, error) {
	return m.configs, m.err
}

func (m *mockModelRunService) ListSnapshots(ctx context.Context, missionID int64, limit int) ([]*models.ResultSnapshot, error) {
	m.lastMission, m.lastLimit = missionID, limit
	return m.snapshots, m.err
}

type mockDatasetService struct {
	dataset *models.RiskDataset
	summary *models.DatasetSummary
	groups  map[models.DistributionType][]*models.Indicator
	stats   map[models.DistributionType]int
	err     error
	note    string
}

func (m *mockDatasetService) GenerateDataset(ctx context.Context, missionID int64, note string) (*models.RiskDataset, error) {
	m.note = note
	if m.err != nil {
		return nil, m.err
	}
	return m.dataset, nil
}

func (m *mockDatasetService) GetLatestDataset(ctx context.Context, missionID int64) (*models.RiskDataset, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.dataset, nil
}

func (m *mockDatasetService) GetDatasetSummary(ctx context.Context, datasetID int64) (*models.DatasetSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.summary, nil
}

func (m *mockDatasetService) ClassifyIndicators(ctx context.Context) (map[models.DistributionType][]*models.Indicator, error) {
	return m.groups, m.err
}

func (m *mockDatasetService) DistributionStats(ctx context.Context) (map[models.DistributionType]int, error) {
	return m.stats, m.err
}

type mockMissionService struct {
	missions     []*models.Mission
	completeness *services.Completeness
	err          error
}

func (m *mockMissionService) Create(ctx context.Context, name, description string) (*models.Mission, error) {
	if m.err != nil {
		return nil, m.err
	}
	mission := &models.Mission{ID: int64(len(m.missions) + 1), Name: name, Description: description}
	m.missions = append(m.missions, mission)
	return mission, nil
}

func (m *mockMissionService) Get(ctx context.Context, id int64) (*models.Mission, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, mission := range m.missions {
		if mission.ID == id {
			return mission, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockMissionService) List(ctx context.Context) ([]*models.Mission, error) {
	return m.missions, m.err
}

func (m *mockMissionService) CheckCompleteness(ctx context.Context, missionID int64) (*services.Completeness, error) {
	return m.completeness, m.err
}
