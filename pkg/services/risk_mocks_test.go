package services

import (
	"context"
	"sort"
	"time"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/services/riskmodels"
)

type mockMissionRepository struct {
	missions []*models.Mission
	err      error
}

func (m *mockMissionRepository) Create(ctx context.Context, mission *models.Mission) error {
	if m.err != nil {
		return m.err
	}
	mission.ID = int64(len(m.missions) + 1)
	mission.CreatedAt = time.Now()
	m.missions = append(m.missions, mission)
	return nil
}

func (m *mockMissionRepository) GetByID(ctx context.Context, id int64) (*models.Mission, error) {
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

func (m *mockMissionRepository) List(ctx context.Context) ([]*models.Mission, error) {
	return m.missions, m.err
}

type mockIndicatorRepository struct {
	indicators []*models.Indicator
	values     []*models.IndicatorValue
	err        error
}

func (m *mockIndicatorRepository) Create(ctx context.Context, ind *models.Indicator) error {
	ind.ID = int64(len(m.indicators) + 1)
	m.indicators = append(m.indicators, ind)
	return nil
}

func (m *mockIndicatorRepository) GetByID(ctx context.Context, id int64) (*models.Indicator, error) {
	for _, ind := range m.indicators {
		if ind.ID == id {
			return ind, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockIndicatorRepository) GetAll(ctx context.Context) ([]*models.Indicator, error) {
	return m.indicators, m.err
}

func (m *mockIndicatorRepository) CreateValue(ctx context.Context, v *models.IndicatorValue) error {
	v.ID = int64(len(m.values) + 1)
	m.values = append(m.values, v)
	return nil
}

func (m *mockIndicatorRepository) GetValuesByMission(ctx context.Context, missionID int64) ([]*models.IndicatorValue, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.IndicatorValue
	for _, v := range m.values {
		if v.MissionID == missionID {
			out = append(out, v)
		}
	}
	return out, nil
}

type mockRiskEventRepository struct {
	events []*models.RiskEvent
}

func (m *mockRiskEventRepository) Create(ctx context.Context, event *models.RiskEvent) error {
	event.ID = int64(len(m.events) + 1)
	m.events = append(m.events, event)
	return nil
}

func (m *mockRiskEventRepository) GetByMission(ctx context.Context, missionID int64) ([]*models.RiskEvent, error) {
	var out []*models.RiskEvent
	for _, e := range m.events {
		if e.MissionID == missionID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockFMEARepository struct {
	items []*models.FMEAItem
}

func (m *mockFMEARepository) Create(ctx context.Context, item *models.FMEAItem) error {
	item.ID = int64(len(m.items) + 1)
	m.items = append(m.items, item)
	return nil
}

func (m *mockFMEARepository) GetByMission(ctx context.Context, missionID int64) ([]*models.FMEAItem, error) {
	var out []*models.FMEAItem
	for _, it := range m.items {
		if it.MissionID == missionID {
			out = append(out, it)
		}
	}
	return out, nil
}

type mockFusionRuleRepository struct {
	rules []*models.FusionRule
}

func (m *mockFusionRuleRepository) Create(ctx context.Context, rule *models.FusionRule) error {
	rule.ID = int64(len(m.rules) + 1)
	m.rules = append(m.rules, rule)
	return nil
}

func (m *mockFusionRuleRepository) GetByMission(ctx context.Context, missionID int64) ([]*models.FusionRule, error) {
	var out []*models.FusionRule
	for _, r := range m.rules {
		if r.MissionID == missionID {
			out = append(out, r)
		}
	}
	return out, nil
}

// mockRiskDatasetRepository fails Create with createErrs in order before succeeding.
type mockRiskDatasetRepository struct {
	datasets    []*models.RiskDataset
	createErrs  []error
	createCalls int
	latestCalls int
}

func (m *mockRiskDatasetRepository) Create(ctx context.Context, ds *models.RiskDataset) error {
	m.createCalls++
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		return err
	}
	ds.ID = int64(len(m.datasets) + 1)
	m.datasets = append(m.datasets, ds)
	return nil
}

func (m *mockRiskDatasetRepository) GetByID(ctx context.Context, id int64) (*models.RiskDataset, error) {
	for _, ds := range m.datasets {
		if ds.ID == id {
			return ds, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockRiskDatasetRepository) GetLatestByMission(ctx context.Context, missionID int64) (*models.RiskDataset, error) {
	m.latestCalls++
	for i := len(m.datasets) - 1; i >= 0; i-- {
		if m.datasets[i].MissionID == missionID {
			return m.datasets[i], nil
		}
	}
	return nil, apperrors.ErrNotFound
}

type mockDatasetCache struct {
	entries       map[int64]*models.RiskDataset
	getErr        error
	setErr        error
	invalidateErr error
	invalidated   []int64
}

func newMockDatasetCache() *mockDatasetCache {
	return &mockDatasetCache{entries: map[int64]*models.RiskDataset{}}
}

func (m *mockDatasetCache) Get(ctx context.Context, missionID int64) (*models.RiskDataset, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.entries[missionID], nil
}

func (m *mockDatasetCache) Set(ctx context.Context, ds *models.RiskDataset) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[ds.MissionID] = ds
	return nil
}

func (m *mockDatasetCache) Invalidate(ctx context.Context, missionID int64) error {
	m.invalidated = append(m.invalidated, missionID)
	if m.invalidateErr != nil {
		return m.invalidateErr
	}
	delete(m.entries, missionID)
	return nil
}

type mockModelConfigRepository struct {
	configs map[string]*models.ModelConfig
	err     error
}

func newMockModelConfigRepository(cfgs ...*models.ModelConfig) *mockModelConfigRepository {
	m := &mockModelConfigRepository{configs: map[string]*models.ModelConfig{}}
	for _, c := range cfgs {
		m.configs[c.ModelID] = c
	}
	return m
}

func (m *mockModelConfigRepository) Upsert(ctx context.Context, cfg *models.ModelConfig) error {
	if m.err != nil {
		return m.err
	}
	cfg.UpdatedAt = time.Now()
	m.configs[cfg.ModelID] = cfg
	return nil
}

func (m *mockModelConfigRepository) Get(ctx context.Context, modelID string) (*models.ModelConfig, error) {
	if m.err != nil {
		return nil, m.err
	}
	cfg, ok := m.configs[modelID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cfg, nil
}

func (m *mockModelConfigRepository) List(ctx context.Context) ([]*models.ModelConfig, error) {
	out := make([]*models.ModelConfig, 0, len(m.configs))
	for _, c := range m.configs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out, nil
}

type mockResultSnapshotRepository struct {
	snapshots []*models.ResultSnapshot
	lastLimit int
}

func (m *mockResultSnapshotRepository) Create(ctx context.Context, snap *models.ResultSnapshot) error {
	snap.ID = int64(len(m.snapshots) + 1)
	snap.CreatedAt = time.Now()
	m.snapshots = append(m.snapshots, snap)
	return nil
}

func (m *mockResultSnapshotRepository) ListByMission(ctx context.Context, missionID int64, limit int) ([]*models.ResultSnapshot, error) {
	m.lastLimit = limit
	var out []*models.ResultSnapshot
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].MissionID == missionID {
			out = append(out, m.snapshots[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// stubModel is an AnalyticalModel that records what it was run with.
type stubModel struct {
	id      string
	schema  []riskmodels.ParamSpec
	fail    bool
	lastRun *riskmodels.RunContext
	hadDL   bool
}

func (m *stubModel) ID() string                          { return m.id }
func (m *stubModel) Name() string                        { return "Stub " + m.id }
func (m *stubModel) Description() string                 { return "stub model" }
func (m *stubModel) Category() string                    { return riskmodels.CategoryRiskAssessment }
func (m *stubModel) ParamSchema() []riskmodels.ParamSpec { return m.schema }

func (m *stubModel) Run(ctx context.Context, rc riskmodels.RunContext) *riskmodels.ModelResult {
	m.lastRun = &rc
	_, m.hadDL = ctx.Deadline()
	res := &riskmodels.ModelResult{
		ModelID:         m.id,
		ModelName:       m.Name(),
		Success:         !m.fail,
		Recommendations: []string{},
		Data:            map[string]any{"params": map[string]any(rc.Params)},
	}
	if m.fail {
		res.ErrorMessage = "stub failure"
		res.Data = nil
	}
	return res
}
