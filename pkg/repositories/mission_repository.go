package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/database"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

// MissionRepository provides data access for missions.
type MissionRepository interface {
	Create(ctx context.Context, mission *models.Mission) error
	GetByID(ctx context.Context, id int64) (*models.Mission, error)
	List(ctx context.Context) ([]*models.Mission, error)
}

type missionRepository struct{}

// NewMissionRepository creates a new MissionRepository.
func NewMissionRepository() MissionRepository {
	return &missionRepository{}
}

var _ MissionRepository = (*missionRepository)(nil)

func (r *missionRepository) Create(ctx context.Context, mission *models.Mission) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return errNoScope
	}

	query := `
		INSERT INTO risk_missions (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at`

	if err := scope.Conn.QueryRow(ctx, query, mission.Name, mission.Description).
		Scan(&mission.ID, &mission.CreatedAt); err != nil {
		return fmt.Errorf("failed to create mission: %w", err)
	}
	return nil
}

func (r *missionRepository) GetByID(ctx context.Context, id int64) (*models.Mission, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	query := `
		SELECT id, name, description, created_at
		FROM risk_missions
		WHERE id = $1`

	var m models.Mission
	err := scope.Conn.QueryRow(ctx, query, id).Scan(&m.ID, &m.Name, &m.Description, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}
	return &m, nil
}

func (r *missionRepository) List(ctx context.Context) ([]*models.Mission, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, name, description, created_at
		FROM risk_missions
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query missions: %w", err)
	}
	defer rows.Close()

	var missions []*models.Mission
	for rows.Next() {
		var m models.Mission
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		missions = append(missions, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating missions: %w", err)
	}
	return missions, nil
}
