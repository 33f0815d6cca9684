package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/database"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

// FMEARepository provides data access for FMEA failure mode rows.
type FMEARepository interface {
	Create(ctx context.Context, item *models.FMEAItem) error
	GetByMission(ctx context.Context, missionID int64) ([]*models.FMEAItem, error)
}

type fmeaRepository struct{}

// NewFMEARepository creates a new FMEARepository.
func NewFMEARepository() FMEARepository {
	return &fmeaRepository{}
}

var _ FMEARepository = (*fmeaRepository)(nil)

func (r *fmeaRepository) Create(ctx context.Context, item *models.FMEAItem) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return errNoScope
	}

	query := `
		INSERT INTO risk_fmea_items (
			mission_id, system, failure_mode, effect, cause, control,
			severity, occurrence, detection
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query,
		item.MissionID,
		item.System,
		item.FailureMode,
		item.Effect,
		item.Cause,
		item.Control,
		item.Severity,
		item.Occurrence,
		item.Detection,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to create FMEA item: %w", err)
	}
	return nil
}

func (r *fmeaRepository) GetByMission(ctx context.Context, missionID int64) ([]*models.FMEAItem, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, mission_id, system, failure_mode, effect, cause, control,
		       severity, occurrence, detection
		FROM risk_fmea_items
		WHERE mission_id = $1
		ORDER BY id`, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query FMEA items: %w", err)
	}
	defer rows.Close()

	var items []*models.FMEAItem
	for rows.Next() {
		var it models.FMEAItem
		if err := rows.Scan(&it.ID, &it.MissionID, &it.System, &it.FailureMode, &it.Effect,
			&it.Cause, &it.Control, &it.Severity, &it.Occurrence, &it.Detection); err != nil {
			return nil, fmt.Errorf("failed to scan FMEA item: %w", err)
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating FMEA items: %w", err)
	}
	return items, nil
}
