package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/database"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

// ResultSnapshotRepository persists model run outcomes.
type ResultSnapshotRepository interface {
	Create(ctx context.Context, snap *models.ResultSnapshot) error
	// ListByMission returns the newest snapshots first. limit <= 0 returns all.
	ListByMission(ctx context.Context, missionID int64, limit int) ([]*models.ResultSnapshot, error)
}

type resultSnapshotRepository struct{}

// NewResultSnapshotRepository creates a new ResultSnapshotRepository.
func NewResultSnapshotRepository() ResultSnapshotRepository {
	return &resultSnapshotRepository{}
}

var _ ResultSnapshotRepository = (*resultSnapshotRepository)(nil)

func (r *resultSnapshotRepository) Create(ctx context.Context, snap *models.ResultSnapshot) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return errNoScope
	}

	modelIDs := snap.ModelIDs
	if modelIDs == nil {
		modelIDs = []string{}
	}
	ids, err := mustJSON(modelIDs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO risk_result_snapshots (mission_id, run_id, model_ids, results)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	if err := scope.Conn.QueryRow(ctx, query, snap.MissionID, snap.RunID, ids, []byte(snap.Results)).
		Scan(&snap.ID, &snap.CreatedAt); err != nil {
		return fmt.Errorf("failed to create result snapshot: %w", err)
	}
	return nil
}

func (r *resultSnapshotRepository) ListByMission(ctx context.Context, missionID int64, limit int) ([]*models.ResultSnapshot, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	query := `
		SELECT id, mission_id, run_id, model_ids, results, created_at
		FROM risk_result_snapshots
		WHERE mission_id = $1
		ORDER BY created_at DESC, id DESC`
	args := []any{missionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query result snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*models.ResultSnapshot
	for rows.Next() {
		var s models.ResultSnapshot
		var ids, results []byte
		if err := rows.Scan(&s.ID, &s.MissionID, &s.RunID, &ids, &results, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result snapshot: %w", err)
		}
		if !jsonutil.DecodeLenient(ids, &s.ModelIDs) {
			s.ModelIDs = []string{}
		}
		s.Results = results
		snaps = append(snaps, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result snapshots: %w", err)
	}
	return snaps, nil
}
