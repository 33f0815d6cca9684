package models

// ============================================================================
// Node and Gate Types
// ============================================================================

// FTANodeType classifies a fault tree node.
type FTANodeType string

const (
	FTANodeTop          FTANodeType = "TOP"
	FTANodeIntermediate FTANodeType = "INTERMEDIATE"
	FTANodeBasic        FTANodeType = "BASIC"
)

// ValidFTANodeTypes contains all valid node types.
var ValidFTANodeTypes = []FTANodeType{
	FTANodeTop,
	FTANodeIntermediate,
	FTANodeBasic,
}

// IsValidFTANodeType checks if the given node type is valid.
func IsValidFTANodeType(t FTANodeType) bool {
	for _, v := range ValidFTANodeTypes {
		if v == t {
			return true
		}
	}
	return false
}

// FTAGateType is the logic gate of a non-basic node. An empty gate evaluates as OR.
type FTAGateType string

const (
	FTAGateAnd FTAGateType = "AND"
	FTAGateOr  FTAGateType = "OR"
)

// DefaultBasicEventProbability is used for BASIC nodes stored without a probability.
const DefaultBasicEventProbability = 0.01

// ============================================================================
// Graph Records
// ============================================================================

// FTANode is a node of a mission's fault tree.
type FTANode struct {
	ID          int64       `json:"id"`
	MissionID   int64       `json:"mission_id"`
	Name        string      `json:"name"`
	NodeType    FTANodeType `json:"node_type"`
	GateType    FTAGateType `json:"gate_type,omitempty"`
	Probability *float64    `json:"probability,omitempty"` // BASIC only
	Severity    *int        `json:"severity,omitempty"`    // TOP only, 1-5
	Description string      `json:"description,omitempty"`
}

// IsBasic reports whether the node is a leaf event.
func (n *FTANode) IsBasic() bool {
	return n.NodeType == FTANodeBasic
}

// BaseProbability returns the stored probability, or the default for unset BASIC nodes.
func (n *FTANode) BaseProbability() float64 {
	if n.Probability == nil {
		return DefaultBasicEventProbability
	}
	return *n.Probability
}

// FTAEdge links a gate to one of its inputs.
type FTAEdge struct {
	ID        int64 `json:"id"`
	MissionID int64 `json:"mission_id"`
	ParentID  int64 `json:"parent_id"`
	ChildID   int64 `json:"child_id"`
}
