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

// IndicatorRepository provides data access for indicators and their
// mission-scoped observed values.
type IndicatorRepository interface {
	Create(ctx context.Context, ind *models.Indicator) error
	GetByID(ctx context.Context, id int64) (*models.Indicator, error)
	GetAll(ctx context.Context) ([]*models.Indicator, error)

	CreateValue(ctx context.Context, v *models.IndicatorValue) error
	// GetValuesByMission returns the mission's values ordered by id; a later
	// row for the same indicator supersedes an earlier one.
	GetValuesByMission(ctx context.Context, missionID int64) ([]*models.IndicatorValue, error)
}

type indicatorRepository struct{}

// NewIndicatorRepository creates a new IndicatorRepository.
func NewIndicatorRepository() IndicatorRepository {
	return &indicatorRepository{}
}

var _ IndicatorRepository = (*indicatorRepository)(nil)

// ============================================================================
// Indicators
// ============================================================================

const indicatorColumns = `id, category_id, name, unit, value_type, distribution_type, dist_params, weight`

func (r *indicatorRepository) Create(ctx context.Context, ind *models.Indicator) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return errNoScope
	}

	if ind.DistributionType == "" {
		ind.DistributionType = models.DistributionNormal
	}
	if ind.ValueType == "" {
		ind.ValueType = "numeric"
	}

	query := `
		INSERT INTO risk_indicators (
			category_id, name, unit, value_type, distribution_type, dist_params, weight
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query,
		ind.CategoryID,
		ind.Name,
		ind.Unit,
		ind.ValueType,
		string(ind.DistributionType),
		jsonbValue(ind.DistParams),
		ind.Weight,
	).Scan(&ind.ID)
	if err != nil {
		return fmt.Errorf("failed to create indicator: %w", err)
	}
	return nil
}

func (r *indicatorRepository) GetByID(ctx context.Context, id int64) (*models.Indicator, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	row := scope.Conn.QueryRow(ctx, `SELECT `+indicatorColumns+` FROM risk_indicators WHERE id = $1`, id)
	ind, err := scanIndicator(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return ind, nil
}

func (r *indicatorRepository) GetAll(ctx context.Context) ([]*models.Indicator, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	rows, err := scope.Conn.Query(ctx, `SELECT `+indicatorColumns+` FROM risk_indicators ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query indicators: %w", err)
	}
	defer rows.Close()

	var indicators []*models.Indicator
	for rows.Next() {
		ind, err := scanIndicator(rows)
		if err != nil {
			return nil, err
		}
		indicators = append(indicators, ind)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indicators: %w", err)
	}
	return indicators, nil
}

// ============================================================================
// Values
// ============================================================================

func (r *indicatorRepository) CreateValue(ctx context.Context, v *models.IndicatorValue) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return errNoScope
	}

	query := `
		INSERT INTO risk_indicator_values (mission_id, indicator_id, value, source)
		VALUES ($1, $2, $3, $4)
		RETURNING id, recorded_at`

	err := scope.Conn.QueryRow(ctx, query, v.MissionID, v.IndicatorID, v.Value, v.Source).
		Scan(&v.ID, &v.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create indicator value: %w", err)
	}
	return nil
}

func (r *indicatorRepository) GetValuesByMission(ctx context.Context, missionID int64) ([]*models.IndicatorValue, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, mission_id, indicator_id, value, source, recorded_at
		FROM risk_indicator_values
		WHERE mission_id = $1
		ORDER BY id`, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query indicator values: %w", err)
	}
	defer rows.Close()

	var values []*models.IndicatorValue
	for rows.Next() {
		var v models.IndicatorValue
		if err := rows.Scan(&v.ID, &v.MissionID, &v.IndicatorID, &v.Value, &v.Source, &v.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan indicator value: %w", err)
		}
		values = append(values, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indicator values: %w", err)
	}
	return values, nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func scanIndicator(row pgx.Row) (*models.Indicator, error) {
	var ind models.Indicator
	var distType string
	var distParams []byte

	err := row.Scan(
		&ind.ID,
		&ind.CategoryID,
		&ind.Name,
		&ind.Unit,
		&ind.ValueType,
		&distType,
		&distParams,
		&ind.Weight,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan indicator: %w", err)
	}

	ind.DistributionType = models.DistributionType(distType)
	ind.DistParams = decodeDistParams(distParams)
	return &ind, nil
}
