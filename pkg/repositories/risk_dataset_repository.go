package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/database"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

// RiskDatasetRepository provides append-only access to risk datasets.
// There is no Update: regenerating a dataset inserts a new row.
type RiskDatasetRepository interface {
	Create(ctx context.Context, ds *models.RiskDataset) error
	GetByID(ctx context.Context, id int64) (*models.RiskDataset, error)
	GetLatestByMission(ctx context.Context, missionID int64) (*models.RiskDataset, error)
}

type riskDatasetRepository struct{}

// NewRiskDatasetRepository creates a new RiskDatasetRepository.
func NewRiskDatasetRepository() RiskDatasetRepository {
	return &riskDatasetRepository{}
}

var _ RiskDatasetRepository = (*riskDatasetRepository)(nil)

func (r *riskDatasetRepository) Create(ctx context.Context, ds *models.RiskDataset) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return errNoScope
	}

	payload, err := mustJSON(ds.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO risk_datasets (mission_id, created_at, payload, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	if err := scope.Conn.QueryRow(ctx, query, ds.MissionID, ds.CreatedAt, payload, ds.Note).
		Scan(&ds.ID); err != nil {
		return fmt.Errorf("failed to create risk dataset: %w", err)
	}
	return nil
}

func (r *riskDatasetRepository) GetByID(ctx context.Context, id int64) (*models.RiskDataset, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	row := scope.Conn.QueryRow(ctx, `
		SELECT id, mission_id, created_at, payload, note
		FROM risk_datasets
		WHERE id = $1`, id)
	return scanRiskDataset(row)
}

func (r *riskDatasetRepository) GetLatestByMission(ctx context.Context, missionID int64) (*models.RiskDataset, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	row := scope.Conn.QueryRow(ctx, `
		SELECT id, mission_id, created_at, payload, note
		FROM risk_datasets
		WHERE mission_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, missionID)
	return scanRiskDataset(row)
}

func scanRiskDataset(row pgx.Row) (*models.RiskDataset, error) {
	var ds models.RiskDataset
	var payload []byte

	if err := row.Scan(&ds.ID, &ds.MissionID, &ds.CreatedAt, &payload, &ds.Note); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan risk dataset: %w", err)
	}

	if err := json.Unmarshal(payload, &ds.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode risk dataset %d payload: %w", ds.ID, err)
	}
	return &ds, nil
}
