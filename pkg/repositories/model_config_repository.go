package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/database"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

// ModelConfigRepository stores per-model parameter presets.
type ModelConfigRepository interface {
	Upsert(ctx context.Context, cfg *models.ModelConfig) error
	Get(ctx context.Context, modelID string) (*models.ModelConfig, error)
	List(ctx context.Context) ([]*models.ModelConfig, error)
}

type modelConfigRepository struct{}

// NewModelConfigRepository creates a new ModelConfigRepository.
func NewModelConfigRepository() ModelConfigRepository {
	return &modelConfigRepository{}
}

var _ ModelConfigRepository = (*modelConfigRepository)(nil)

func (r *modelConfigRepository) Upsert(ctx context.Context, cfg *models.ModelConfig) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return errNoScope
	}

	params := cfg.Params
	if params == nil {
		params = map[string]any{}
	}
	raw, err := mustJSON(params)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO risk_model_configs (model_id, enabled, params, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (model_id) DO UPDATE
		SET enabled = EXCLUDED.enabled, params = EXCLUDED.params, updated_at = now()
		RETURNING updated_at`

	if err := scope.Conn.QueryRow(ctx, query, cfg.ModelID, cfg.Enabled, raw).Scan(&cfg.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert model config: %w", err)
	}
	return nil
}

func (r *modelConfigRepository) Get(ctx context.Context, modelID string) (*models.ModelConfig, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	row := scope.Conn.QueryRow(ctx, `
		SELECT model_id, enabled, params, updated_at
		FROM risk_model_configs
		WHERE model_id = $1`, modelID)
	cfg, err := scanModelConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return cfg, nil
}

func (r *modelConfigRepository) List(ctx context.Context) ([]*models.ModelConfig, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT model_id, enabled, params, updated_at
		FROM risk_model_configs
		ORDER BY model_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query model configs: %w", err)
	}
	defer rows.Close()

	var configs []*models.ModelConfig
	for rows.Next() {
		cfg, err := scanModelConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model configs: %w", err)
	}
	return configs, nil
}

func scanModelConfig(row pgx.Row) (*models.ModelConfig, error) {
	var cfg models.ModelConfig
	var params []byte

	if err := row.Scan(&cfg.ModelID, &cfg.Enabled, &params, &cfg.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan model config: %w", err)
	}

	// A corrupt preset degrades to "no overrides" rather than blocking runs.
	if !jsonutil.DecodeLenient(params, &cfg.Params) {
		cfg.Params = map[string]any{}
	}
	return &cfg, nil
}
