package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/database"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

// RiskEventRepository provides data access for risk matrix events.
type RiskEventRepository interface {
	Create(ctx context.Context, event *models.RiskEvent) error
	GetByMission(ctx context.Context, missionID int64) ([]*models.RiskEvent, error)
}

type riskEventRepository struct{}

// NewRiskEventRepository creates a new RiskEventRepository.
func NewRiskEventRepository() RiskEventRepository {
	return &riskEventRepository{}
}

var _ RiskEventRepository = (*riskEventRepository)(nil)

func (r *riskEventRepository) Create(ctx context.Context, event *models.RiskEvent) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return errNoScope
	}

	query := `
		INSERT INTO risk_events (mission_id, name, hazard_type, description, likelihood, severity)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query,
		event.MissionID,
		event.Name,
		event.HazardType,
		event.Description,
		event.Likelihood,
		event.Severity,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to create risk event: %w", err)
	}
	return nil
}

func (r *riskEventRepository) GetByMission(ctx context.Context, missionID int64) ([]*models.RiskEvent, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, mission_id, name, hazard_type, description, likelihood, severity
		FROM risk_events
		WHERE mission_id = $1
		ORDER BY id`, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk events: %w", err)
	}
	defer rows.Close()

	var events []*models.RiskEvent
	for rows.Next() {
		var e models.RiskEvent
		if err := rows.Scan(&e.ID, &e.MissionID, &e.Name, &e.HazardType, &e.Description,
			&e.Likelihood, &e.Severity); err != nil {
			return nil, fmt.Errorf("failed to scan risk event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating risk events: %w", err)
	}
	return events, nil
}
