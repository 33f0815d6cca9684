package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/repositories"
)

// Coverage thresholds for CheckCompleteness, in percent.
const (
	coverageWarnPercent     = 80.0
	coverageRequiredPercent = 50.0
)

// Completeness reports whether a mission has enough data for the models to be meaningful.
type Completeness struct {
	MissionID          int64    `json:"mission_id"`
	MissionExists      bool     `json:"mission_exists"`
	MissionName        string   `json:"mission_name,omitempty"`
	IndicatorTotal     int      `json:"indicator_total"`
	IndicatorWithValue int      `json:"indicator_with_value"`
	IndicatorCoverage  float64  `json:"indicator_coverage"`
	RiskEventCount     int      `json:"risk_event_count"`
	FMEAItemCount      int      `json:"fmea_item_count"`
	Issues             []string `json:"issues"`
	IsComplete         bool     `json:"is_complete"`
}

// MissionService manages missions.
type MissionService interface {
	// Create stores a new mission. The name is required.
	Create(ctx context.Context, name, description string) (*models.Mission, error)

	// Get returns a mission. Returns apperrors.ErrNotFound if it does not exist.
	Get(ctx context.Context, id int64) (*models.Mission, error)

	// List returns all missions.
	List(ctx context.Context) ([]*models.Mission, error)

	// CheckCompleteness summarizes the data available for a mission.
	// A missing mission is reported in the result, not as an error.
	CheckCompleteness(ctx context.Context, missionID int64) (*Completeness, error)
}

type missionService struct {
	missions   repositories.MissionRepository
	indicators repositories.IndicatorRepository
	events     repositories.RiskEventRepository
	fmea       repositories.FMEARepository
	logger     *zap.Logger
}

// NewMissionService creates a new mission service.
func NewMissionService(
	missions repositories.MissionRepository,
	indicators repositories.IndicatorRepository,
	events repositories.RiskEventRepository,
	fmea repositories.FMEARepository,
	logger *zap.Logger,
) MissionService {
	return &missionService{
		missions:   missions,
		indicators: indicators,
		events:     events,
		fmea:       fmea,
		logger:     logger.Named("mission"),
	}
}

var _ MissionService = (*missionService)(nil)

func (s *missionService) Create(ctx context.Context, name, description string) (*models.Mission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: mission name is required", apperrors.ErrInvalidInput)
	}

	mission := &models.Mission{Name: name, Description: description}
	if err := s.missions.Create(ctx, mission); err != nil {
		return nil, fmt.Errorf("failed to create mission: %w", err)
	}

	s.logger.Info("Created mission",
		zap.Int64("mission_id", mission.ID),
		zap.String("name", mission.Name))
	return mission, nil
}

func (s *missionService) Get(ctx context.Context, id int64) (*models.Mission, error) {
	mission, err := s.missions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get mission %d: %w", id, err)
	}
	return mission, nil
}

func (s *missionService) List(ctx context.Context) ([]*models.Mission, error) {
	missions, err := s.missions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	return missions, nil
}

func (s *missionService) CheckCompleteness(ctx context.Context, missionID int64) (*Completeness, error) {
	c := &Completeness{MissionID: missionID, Issues: []string{}}

	mission, err := s.missions.GetByID(ctx, missionID)
	switch {
	case err == nil:
		c.MissionExists = true
		c.MissionName = mission.Name
	case errors.Is(err, apperrors.ErrNotFound):
		c.Issues = append(c.Issues, "mission does not exist")
		return c, nil
	default:
		return nil, fmt.Errorf("failed to get mission %d: %w", missionID, err)
	}

	indicators, err := s.indicators.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load indicators: %w", err)
	}
	values, err := s.indicators.GetValuesByMission(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load indicator values: %w", err)
	}
	events, err := s.events.GetByMission(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk events: %w", err)
	}
	items, err := s.fmea.GetByMission(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load FMEA items: %w", err)
	}

	known := make(map[int64]bool, len(indicators))
	for _, ind := range indicators {
		known[ind.ID] = true
	}
	withValue := make(map[int64]bool, len(values))
	for _, v := range values {
		if known[v.IndicatorID] {
			withValue[v.IndicatorID] = true
		}
	}

	c.IndicatorTotal = len(indicators)
	c.IndicatorWithValue = len(withValue)
	c.IndicatorCoverage = 100
	if c.IndicatorTotal > 0 {
		c.IndicatorCoverage = math.Round(float64(c.IndicatorWithValue)/float64(c.IndicatorTotal)*1000) / 10
	}
	c.RiskEventCount = len(events)
	c.FMEAItemCount = len(items)

	if c.IndicatorCoverage < coverageWarnPercent {
		c.Issues = append(c.Issues, fmt.Sprintf("indicator coverage is %.1f%%, below %.0f%%", c.IndicatorCoverage, coverageWarnPercent))
	}
	if c.RiskEventCount == 0 {
		c.Issues = append(c.Issues, "no risk events recorded")
	}
	if c.FMEAItemCount == 0 {
		c.Issues = append(c.Issues, "no FMEA items recorded")
	}

	c.IsComplete = c.IndicatorCoverage >= coverageRequiredPercent && c.RiskEventCount > 0
	return c, nil
}
