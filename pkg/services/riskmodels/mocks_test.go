package riskmodels

import (
	"context"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

// mockRiskEventRepository is an in-memory RiskEventRepository.
type mockRiskEventRepository struct {
	events []*models.RiskEvent
	err    error
}

func (m *mockRiskEventRepository) Create(ctx context.Context, event *models.RiskEvent) error {
	event.ID = int64(len(m.events) + 1)
	m.events = append(m.events, event)
	return nil
}

func (m *mockRiskEventRepository) GetByMission(ctx context.Context, missionID int64) ([]*models.RiskEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.RiskEvent
	for _, e := range m.events {
		if e.MissionID == missionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// mockFMEARepository is an in-memory FMEARepository.
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

// mockFTARepository is an in-memory FTARepository.
type mockFTARepository struct {
	nodes []*models.FTANode
	edges []*models.FTAEdge
}

func (m *mockFTARepository) CreateNode(ctx context.Context, node *models.FTANode) error {
	m.nodes = append(m.nodes, node)
	return nil
}

func (m *mockFTARepository) CreateEdge(ctx context.Context, edge *models.FTAEdge) error {
	m.edges = append(m.edges, edge)
	return nil
}

func (m *mockFTARepository) GetNodesByMission(ctx context.Context, missionID int64) ([]*models.FTANode, error) {
	return m.nodes, nil
}

func (m *mockFTARepository) GetEdgesByMission(ctx context.Context, missionID int64) ([]*models.FTAEdge, error) {
	return m.edges, nil
}

// mockIndicatorRepository is an in-memory IndicatorRepository.
type mockIndicatorRepository struct {
	indicators []*models.Indicator
	values     []*models.IndicatorValue
}

func (m *mockIndicatorRepository) Create(ctx context.Context, ind *models.Indicator) error {
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
	return m.indicators, nil
}

func (m *mockIndicatorRepository) CreateValue(ctx context.Context, v *models.IndicatorValue) error {
	m.values = append(m.values, v)
	return nil
}

func (m *mockIndicatorRepository) GetValuesByMission(ctx context.Context, missionID int64) ([]*models.IndicatorValue, error) {
	var out []*models.IndicatorValue
	for _, v := range m.values {
		if v.MissionID == missionID {
			out = append(out, v)
		}
	}
	return out, nil
}

// mockDatasetSource serves a fixed dataset, or ErrNotFound when nil.
type mockDatasetSource struct {
	dataset *models.RiskDataset
	err     error
}

func (m *mockDatasetSource) GetLatestDataset(ctx context.Context, missionID int64) (*models.RiskDataset, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.dataset == nil {
		return nil, apperrors.ErrNotFound
	}
	return m.dataset, nil
}

// panickingModel exercises the executor's panic recovery.
type panickingModel struct {
	baseModel
}

func (m *panickingModel) Run(ctx context.Context, rc RunContext) *ModelResult {
	return m.execute(ctx, rc, func(context.Context, RunContext) (any, []string, error) {
		panic("boom")
	})
}
