// seed-mission loads a mission and its risk records from a YAML fixture.
//
// The fixture references indicators and fault tree nodes by local keys;
// they are resolved to database ids as records are created. See
// testdata/lunar-ascent.yaml for the format.
//
// Usage: go run ./scripts/seed-mission [-dry-run] <fixture.yaml>
//
// Database connection: Uses config.yaml and the standard PG* environment variables
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/config"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/database"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/repositories"
)

type fixture struct {
	Mission struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"mission"`
	Indicators  []fixtureIndicator  `yaml:"indicators"`
	RiskEvents  []fixtureRiskEvent  `yaml:"risk_events"`
	FMEAItems   []fixtureFMEAItem   `yaml:"fmea_items"`
	FaultTree   fixtureFaultTree    `yaml:"fault_tree"`
	FusionRules []fixtureFusionRule `yaml:"fusion_rules"`
}

type fixtureIndicator struct {
	Key              string            `yaml:"key"`
	Name             string            `yaml:"name"`
	Unit             string            `yaml:"unit"`
	DistributionType string            `yaml:"distribution_type"`
	DistParams       fixtureDistParams `yaml:"dist_params"`
	Weight           *float64          `yaml:"weight"`
	Value            string            `yaml:"value"`
}

type fixtureDistParams struct {
	Mu     *float64  `yaml:"mu"`
	Sigma  *float64  `yaml:"sigma"`
	Low    *float64  `yaml:"low"`
	Mode   *float64  `yaml:"mode"`
	High   *float64  `yaml:"high"`
	Values []float64 `yaml:"values"`
	Probs  []float64 `yaml:"probs"`
}

type fixtureRiskEvent struct {
	Name        string `yaml:"name"`
	HazardType  string `yaml:"hazard_type"`
	Description string `yaml:"description"`
	Likelihood  int    `yaml:"likelihood"`
	Severity    int    `yaml:"severity"`
}

type fixtureFMEAItem struct {
	System      string `yaml:"system"`
	FailureMode string `yaml:"failure_mode"`
	Effect      string `yaml:"effect"`
	Cause       string `yaml:"cause"`
	Control     string `yaml:"control"`
	Severity    int    `yaml:"severity"`
	Occurrence  int    `yaml:"occurrence"`
	Detection   int    `yaml:"detection"`
}

type fixtureFaultTree struct {
	Nodes []struct {
		Key         string   `yaml:"key"`
		Name        string   `yaml:"name"`
		NodeType    string   `yaml:"node_type"`
		GateType    string   `yaml:"gate_type"`
		Probability *float64 `yaml:"probability"`
		Severity    *int     `yaml:"severity"`
		Description string   `yaml:"description"`
	} `yaml:"nodes"`
	Edges []struct {
		Parent string `yaml:"parent"`
		Child  string `yaml:"child"`
	} `yaml:"edges"`
}

type fixtureFusionRule struct {
	Name                string    `yaml:"name"`
	Inputs              []string  `yaml:"inputs"`
	Method              string    `yaml:"method"`
	Weights             []float64 `yaml:"weights"`
	OutputIndicatorName string    `yaml:"output_indicator_name"`
	OutputUnit          string    `yaml:"output_unit"`
	Description         string    `yaml:"description"`
}

func main() {
	dryRun := flag.Bool("dry-run", false, "Validate the fixture without writing to the database")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-dry-run] <fixture.yaml>\n", os.Args[0])
		os.Exit(1)
	}

	fx, err := loadFixture(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid fixture: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Fixture %q: %d indicators, %d risk events, %d FMEA items, %d FTA nodes, %d fusion rules\n",
		fx.Mission.Name, len(fx.Indicators), len(fx.RiskEvents), len(fx.FMEAItems),
		len(fx.FaultTree.Nodes), len(fx.FusionRules))
	if *dryRun {
		fmt.Println("DRY RUN - no changes made")
		return
	}

	cfg, err := config.Load("seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.NewConnection(ctx, &database.Config{URL: cfg.Database.ConnectionURL(), MaxConnections: 2})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	scoped, release, err := db.WithScope(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to acquire connection: %v\n", err)
		os.Exit(1)
	}
	defer release()

	missionID, err := seed(scoped, fx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seeding failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created mission %d\n", missionID)
}

// loadFixture parses and validates a fixture file.
func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// validate checks names and that every key reference resolves.
func (fx *fixture) validate() error {
	if strings.TrimSpace(fx.Mission.Name) == "" {
		return fmt.Errorf("mission.name is required")
	}

	indicatorKeys := make(map[string]bool, len(fx.Indicators))
	for i, ind := range fx.Indicators {
		if ind.Key == "" || ind.Name == "" {
			return fmt.Errorf("indicators[%d]: key and name are required", i)
		}
		if indicatorKeys[ind.Key] {
			return fmt.Errorf("indicators[%d]: duplicate key %q", i, ind.Key)
		}
		indicatorKeys[ind.Key] = true
	}

	nodeKeys := make(map[string]bool, len(fx.FaultTree.Nodes))
	for i, n := range fx.FaultTree.Nodes {
		if n.Key == "" || n.Name == "" {
			return fmt.Errorf("fault_tree.nodes[%d]: key and name are required", i)
		}
		if !models.IsValidFTANodeType(models.FTANodeType(n.NodeType)) {
			return fmt.Errorf("fault_tree.nodes[%d]: unknown node_type %q", i, n.NodeType)
		}
		if nodeKeys[n.Key] {
			return fmt.Errorf("fault_tree.nodes[%d]: duplicate key %q", i, n.Key)
		}
		nodeKeys[n.Key] = true
	}
	for i, e := range fx.FaultTree.Edges {
		if !nodeKeys[e.Parent] || !nodeKeys[e.Child] {
			return fmt.Errorf("fault_tree.edges[%d]: unknown node %q -> %q", i, e.Parent, e.Child)
		}
	}

	for i, r := range fx.FusionRules {
		if len(r.Inputs) < 2 {
			return fmt.Errorf("fusion_rules[%d]: at least two inputs are required", i)
		}
		for _, key := range r.Inputs {
			if !indicatorKeys[key] {
				return fmt.Errorf("fusion_rules[%d]: unknown indicator %q", i, key)
			}
		}
		if r.Method != "" && !models.IsValidFusionMethod(models.FusionMethod(r.Method)) {
			return fmt.Errorf("fusion_rules[%d]: unknown method %q", i, r.Method)
		}
	}
	return nil
}

// seed writes the fixture through the repositories. ctx must carry a database scope.
func seed(ctx context.Context, fx *fixture) (int64, error) {
	missionRepo := repositories.NewMissionRepository()
	indicatorRepo := repositories.NewIndicatorRepository()
	eventRepo := repositories.NewRiskEventRepository()
	fmeaRepo := repositories.NewFMEARepository()
	ftaRepo := repositories.NewFTARepository()
	fusionRepo := repositories.NewFusionRuleRepository()

	mission := &models.Mission{Name: fx.Mission.Name, Description: fx.Mission.Description}
	if err := missionRepo.Create(ctx, mission); err != nil {
		return 0, fmt.Errorf("create mission: %w", err)
	}

	indicatorIDs := make(map[string]int64, len(fx.Indicators))
	now := time.Now().UTC()
	for _, fi := range fx.Indicators {
		ind := fi.toModel()
		if err := indicatorRepo.Create(ctx, ind); err != nil {
			return 0, fmt.Errorf("create indicator %q: %w", fi.Name, err)
		}
		indicatorIDs[fi.Key] = ind.ID

		if fi.Value == "" {
			continue
		}
		v := &models.IndicatorValue{
			MissionID:   mission.ID,
			IndicatorID: ind.ID,
			Value:       fi.Value,
			Source:      "seed",
			Timestamp:   now,
		}
		if err := indicatorRepo.CreateValue(ctx, v); err != nil {
			return 0, fmt.Errorf("create value for %q: %w", fi.Name, err)
		}
	}

	for _, fe := range fx.RiskEvents {
		event := &models.RiskEvent{
			MissionID:   mission.ID,
			Name:        fe.Name,
			HazardType:  fe.HazardType,
			Description: fe.Description,
			Likelihood:  fe.Likelihood,
			Severity:    fe.Severity,
		}
		if err := eventRepo.Create(ctx, event); err != nil {
			return 0, fmt.Errorf("create risk event %q: %w", fe.Name, err)
		}
	}

	for _, fm := range fx.FMEAItems {
		item := &models.FMEAItem{
			MissionID:   mission.ID,
			System:      fm.System,
			FailureMode: fm.FailureMode,
			Effect:      fm.Effect,
			Cause:       fm.Cause,
			Control:     fm.Control,
			Severity:    fm.Severity,
			Occurrence:  fm.Occurrence,
			Detection:   fm.Detection,
		}
		if err := fmeaRepo.Create(ctx, item); err != nil {
			return 0, fmt.Errorf("create FMEA item %q: %w", fm.FailureMode, err)
		}
	}

	nodeIDs := make(map[string]int64, len(fx.FaultTree.Nodes))
	for _, fn := range fx.FaultTree.Nodes {
		node := &models.FTANode{
			MissionID:   mission.ID,
			Name:        fn.Name,
			NodeType:    models.FTANodeType(fn.NodeType),
			GateType:    models.FTAGateType(fn.GateType),
			Probability: fn.Probability,
			Severity:    fn.Severity,
			Description: fn.Description,
		}
		if err := ftaRepo.CreateNode(ctx, node); err != nil {
			return 0, fmt.Errorf("create FTA node %q: %w", fn.Name, err)
		}
		nodeIDs[fn.Key] = node.ID
	}
	for _, e := range fx.FaultTree.Edges {
		edge := &models.FTAEdge{MissionID: mission.ID, ParentID: nodeIDs[e.Parent], ChildID: nodeIDs[e.Child]}
		if err := ftaRepo.CreateEdge(ctx, edge); err != nil {
			return 0, fmt.Errorf("create FTA edge %s -> %s: %w", e.Parent, e.Child, err)
		}
	}

	for _, fr := range fx.FusionRules {
		rule := fr.toModel(mission.ID, indicatorIDs)
		if err := fusionRepo.Create(ctx, rule); err != nil {
			return 0, fmt.Errorf("create fusion rule %q: %w", fr.Name, err)
		}
	}

	return mission.ID, nil
}

func (fi fixtureIndicator) toModel() *models.Indicator {
	weight := models.DefaultIndicatorWeight
	if fi.Weight != nil {
		weight = *fi.Weight
	}
	p := fi.DistParams
	return &models.Indicator{
		Name:             fi.Name,
		Unit:             fi.Unit,
		DistributionType: models.NormalizeDistributionType(models.DistributionType(fi.DistributionType)),
		DistParams: models.DistParams{
			Mu: p.Mu, Sigma: p.Sigma, Low: p.Low, Mode: p.Mode, High: p.High,
			Values: p.Values, Probs: p.Probs,
		},
		Weight: weight,
	}
}

func (fr fixtureFusionRule) toModel(missionID int64, indicatorIDs map[string]int64) *models.FusionRule {
	inputs := make([]int64, 0, len(fr.Inputs))
	for _, key := range fr.Inputs {
		inputs = append(inputs, indicatorIDs[key])
	}
	method := models.FusionMethod(fr.Method)
	if method == "" {
		method = models.FusionMean
	}
	output := fr.OutputIndicatorName
	if output == "" {
		output = fr.Name
	}
	return &models.FusionRule{
		MissionID:           missionID,
		Name:                fr.Name,
		InputIndicatorIDs:   inputs,
		Method:              method,
		Weights:             fr.Weights,
		OutputIndicatorName: output,
		OutputUnit:          fr.OutputUnit,
		Description:         fr.Description,
	}
}
