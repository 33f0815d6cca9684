package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/database"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

// FusionRuleRepository provides data access for indicator fusion rules.
type FusionRuleRepository interface {
	Create(ctx context.Context, rule *models.FusionRule) error
	GetByMission(ctx context.Context, missionID int64) ([]*models.FusionRule, error)
}

type fusionRuleRepository struct{}

// NewFusionRuleRepository creates a new FusionRuleRepository.
func NewFusionRuleRepository() FusionRuleRepository {
	return &fusionRuleRepository{}
}

var _ FusionRuleRepository = (*fusionRuleRepository)(nil)

func (r *fusionRuleRepository) Create(ctx context.Context, rule *models.FusionRule) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return errNoScope
	}

	if rule.Method == "" {
		rule.Method = models.FusionMean
	}
	inputIDs := rule.InputIndicatorIDs
	if inputIDs == nil {
		inputIDs = []int64{}
	}

	query := `
		INSERT INTO risk_fusion_rules (
			mission_id, name, input_indicator_ids, method, weight_source, weights,
			output_indicator_name, output_unit, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query,
		rule.MissionID,
		rule.Name,
		inputIDs,
		string(rule.Method),
		rule.WeightSource,
		jsonbValue(rule.Weights),
		rule.OutputIndicatorName,
		rule.OutputUnit,
		rule.Description,
	).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("failed to create fusion rule: %w", err)
	}
	return nil
}

func (r *fusionRuleRepository) GetByMission(ctx context.Context, missionID int64) ([]*models.FusionRule, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, mission_id, name, input_indicator_ids, method, weight_source, weights,
		       output_indicator_name, output_unit, description
		FROM risk_fusion_rules
		WHERE mission_id = $1
		ORDER BY id`, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fusion rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.FusionRule
	for rows.Next() {
		var rule models.FusionRule
		var method string
		var inputIDs, weights []byte
		if err := rows.Scan(&rule.ID, &rule.MissionID, &rule.Name, &inputIDs, &method,
			&rule.WeightSource, &weights, &rule.OutputIndicatorName, &rule.OutputUnit,
			&rule.Description); err != nil {
			return nil, fmt.Errorf("failed to scan fusion rule: %w", err)
		}
		rule.Method = models.FusionMethod(method)
		// Hand-edited rows may hold ids or weights as strings; malformed blobs read as empty.
		rule.InputIndicatorIDs = jsonutil.FlexibleInt64Slice(inputIDs)
		rule.Weights = jsonutil.FlexibleFloatSlice(weights)
		rules = append(rules, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fusion rules: %w", err)
	}
	return rules, nil
}
