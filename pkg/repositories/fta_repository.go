package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/database"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

// FTARepository provides data access for fault tree nodes and edges.
type FTARepository interface {
	CreateNode(ctx context.Context, node *models.FTANode) error
	CreateEdge(ctx context.Context, edge *models.FTAEdge) error
	GetNodesByMission(ctx context.Context, missionID int64) ([]*models.FTANode, error)
	GetEdgesByMission(ctx context.Context, missionID int64) ([]*models.FTAEdge, error)
}

type ftaRepository struct{}

// NewFTARepository creates a new FTARepository.
func NewFTARepository() FTARepository {
	return &ftaRepository{}
}

var _ FTARepository = (*ftaRepository)(nil)

func (r *ftaRepository) CreateNode(ctx context.Context, node *models.FTANode) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return errNoScope
	}

	if !models.IsValidFTANodeType(node.NodeType) {
		return fmt.Errorf("invalid fault tree node type %q", node.NodeType)
	}

	query := `
		INSERT INTO risk_fta_nodes (
			mission_id, name, node_type, gate_type, probability, severity, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query,
		node.MissionID,
		node.Name,
		string(node.NodeType),
		string(node.GateType),
		node.Probability,
		node.Severity,
		node.Description,
	).Scan(&node.ID)
	if err != nil {
		return fmt.Errorf("failed to create fault tree node: %w", err)
	}
	return nil
}

func (r *ftaRepository) CreateEdge(ctx context.Context, edge *models.FTAEdge) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return errNoScope
	}

	query := `
		INSERT INTO risk_fta_edges (mission_id, parent_id, child_id)
		VALUES ($1, $2, $3)
		RETURNING id`

	if err := scope.Conn.QueryRow(ctx, query, edge.MissionID, edge.ParentID, edge.ChildID).
		Scan(&edge.ID); err != nil {
		return fmt.Errorf("failed to create fault tree edge: %w", err)
	}
	return nil
}

func (r *ftaRepository) GetNodesByMission(ctx context.Context, missionID int64) ([]*models.FTANode, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, mission_id, name, node_type, gate_type, probability, severity, description
		FROM risk_fta_nodes
		WHERE mission_id = $1
		ORDER BY id`, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fault tree nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*models.FTANode
	for rows.Next() {
		var n models.FTANode
		var nodeType, gateType string
		if err := rows.Scan(&n.ID, &n.MissionID, &n.Name, &nodeType, &gateType,
			&n.Probability, &n.Severity, &n.Description); err != nil {
			return nil, fmt.Errorf("failed to scan fault tree node: %w", err)
		}
		n.NodeType = models.FTANodeType(nodeType)
		n.GateType = models.FTAGateType(gateType)
		nodes = append(nodes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fault tree nodes: %w", err)
	}
	return nodes, nil
}

func (r *ftaRepository) GetEdgesByMission(ctx context.Context, missionID int64) ([]*models.FTAEdge, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, mission_id, parent_id, child_id
		FROM risk_fta_edges
		WHERE mission_id = $1
		ORDER BY id`, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fault tree edges: %w", err)
	}
	defer rows.Close()

	var edges []*models.FTAEdge
	for rows.Next() {
		var e models.FTAEdge
		if err := rows.Scan(&e.ID, &e.MissionID, &e.ParentID, &e.ChildID); err != nil {
			return nil, fmt.Errorf("failed to scan fault tree edge: %w", err)
		}
		edges = append(edges, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fault tree edges: %w", err)
	}
	return edges, nil
}
