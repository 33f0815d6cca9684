package riskmodels

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/distribution"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/repositories"
)

// MonteCarloModelID is the registry key of the Monte Carlo model.
const MonteCarloModelID = "monte_carlo"

// Analysis types reported in Monte Carlo results.
const (
	MCRiskMatrix = "risk_matrix"
	MCFMEA       = "fmea"
	MCAHPScore   = "ahp_score"
)

const (
	defaultSamples    = 2000
	minSamples        = 100
	maxSamples        = 100000
	defaultRandomSeed = 42
	defaultChunkSize  = 500
	// histogramLimit caps the raw samples returned for plotting.
	histogramLimit = 100

	// Global prob_high above which recommendations are issued.
	mcGlobalAlertProb = 0.1
	mcAHPAlertProb    = 0.2
)

// Each analysis samples on its own family of PCG streams.
const (
	streamRiskMatrix uint64 = iota + 1
	streamFMEA
	streamAHP
)

// MonteCarloConfig bounds Monte Carlo work independently of request parameters.
type MonteCarloConfig struct {
	// MaxSamples caps n_samples. Zero means no cap beyond the schema maximum.
	MaxSamples int
	// ChunkSize is the number of samples evaluated per task.
	ChunkSize int
	// Workers bounds concurrent tasks; zero means GOMAXPROCS.
	Workers int
}

// MCEventStats describes the sampled score of one risk event or FMEA item.
type MCEventStats struct {
	EventID   int64   `json:"event_id"`
	EventName string  `json:"event_name"`
	NominalR  int     `json:"nominal_R"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	P50       float64 `json:"p50"`
	P90       float64 `json:"p90"`
	P95       float64 `json:"p95"`
	ProbHigh  float64 `json:"prob_high"`
}

// MCGlobalStats describes a sampled mission-wide total.
type MCGlobalStats struct {
	IndicatorName string  `json:"indicator_name"`
	NominalValue  float64 `json:"nominal_value"`
	Mean          float64 `json:"mean"`
	Std           float64 `json:"std"`
	P50           float64 `json:"p50"`
	P90           float64 `json:"p90"`
	P95           float64 `json:"p95"`
	ProbHigh      float64 `json:"prob_high"`
}

// MCAHPStats describes the sampled composite score.
type MCAHPStats struct {
	NominalScore float64 `json:"nominal_score"`
	Mean         float64 `json:"mean"`
	Std          float64 `json:"std"`
	P50          float64 `json:"p50"`
	P90          float64 `json:"p90"`
	P95          float64 `json:"p95"`
	// ProbHigh is P(score >= 0.5); ProbExtreme is P(score >= 0.75).
	ProbHigh    float64 `json:"prob_high"`
	ProbExtreme float64 `json:"prob_extreme"`
}

// MonteCarloAnalysis is the outcome of one sampled analysis.
type MonteCarloAnalysis struct {
	ModelType     string         `json:"model_type"`
	NSamples      int            `json:"n_samples"`
	EventStats    []MCEventStats `json:"event_stats"`
	GlobalStats   *MCGlobalStats `json:"global_stats,omitempty"`
	AHPStats      *MCAHPStats    `json:"ahp_stats,omitempty"`
	HistogramData []float64      `json:"histogram_data"`
}

// MonteCarloResult is the payload of a Monte Carlo run. Analyses that were
// not requested are omitted.
type MonteCarloResult struct {
	RiskMatrix *MonteCarloAnalysis `json:"risk_matrix,omitempty"`
	FMEA       *MonteCarloAnalysis `json:"fmea,omitempty"`
	AHP        *MonteCarloAnalysis `json:"ahp,omitempty"`
}

func newAnalysis(modelType string, n int) *MonteCarloAnalysis {
	return &MonteCarloAnalysis{
		ModelType:     modelType,
		NSamples:      n,
		EventStats:    []MCEventStats{},
		HistogramData: []float64{},
	}
}

func histogram(samples []float64) []float64 {
	return slices.Clone(topN(samples, histogramLimit))
}

func globalStats(name string, nominal float64, samples []float64, threshold float64) *MCGlobalStats {
	s := summarize(samples)
	return &MCGlobalStats{
		IndicatorName: name,
		NominalValue:  nominal,
		Mean:          round(s.Mean, 2),
		Std:           round(s.Std, 2),
		P50:           round(s.P50, 2),
		P90:           round(s.P90, 2),
		P95:           round(s.P95, 2),
		ProbHigh:      round(fractionAtLeast(samples, threshold), 4),
	}
}

func eventStats(id int64, name string, nominal int, samples []float64, threshold float64) MCEventStats {
	s := summarize(samples)
	return MCEventStats{
		EventID:   id,
		EventName: name,
		NominalR:  nominal,
		Mean:      round(s.Mean, 2),
		Std:       round(s.Std, 2),
		P50:       round(s.P50, 2),
		P90:       round(s.P90, 2),
		P95:       round(s.P95, 2),
		ProbHigh:  round(fractionAtLeast(samples, threshold), 4),
	}
}

// ============================================================================
// Sampling engine
// ============================================================================

// MonteCarloEngine evaluates samples in fixed-size chunks on a bounded pool
// of goroutines. Chunk k of an analysis always draws from PCG stream
// (analysis<<32 | k) under the run seed, so results for a given seed do not
// depend on scheduling or on the number of workers.
type MonteCarloEngine struct {
	chunkSize int
	workers   int
}

// NewMonteCarloEngine creates an engine from cfg, applying defaults.
func NewMonteCarloEngine(cfg MonteCarloConfig) *MonteCarloEngine {
	e := &MonteCarloEngine{chunkSize: cfg.ChunkSize, workers: cfg.Workers}
	if e.chunkSize <= 0 {
		e.chunkSize = defaultChunkSize
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	return e
}

// chunkFunc evaluates samples [lo, hi) with a sampler private to the chunk.
type chunkFunc func(s *distribution.Sampler, lo, hi int)

func (e *MonteCarloEngine) run(ctx context.Context, seed, analysis uint64, n int, fn chunkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for chunk, lo := uint64(0), 0; lo < n; chunk, lo = chunk+1, lo+e.chunkSize {
		hi := min(lo+e.chunkSize, n)
		stream := analysis<<32 | chunk
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(distribution.NewSeededSampler(seed, stream), lo, hi)
			return nil
		})
	}
	return g.Wait()
}

// SimulateRiskMatrix resamples L and S of every event by +/-1 and tracks
// each event's R and the mission total.
func (e *MonteCarloEngine) SimulateRiskMatrix(ctx context.Context, events []*models.RiskEvent, n int, seed uint64) (*MonteCarloAnalysis, error) {
	result := newAnalysis(MCRiskMatrix, n)
	if len(events) == 0 {
		result.GlobalStats = &MCGlobalStats{IndicatorName: "Total Risk"}
		return result, nil
	}

	perEvent := make([][]float64, len(events))
	for j := range perEvent {
		perEvent[j] = make([]float64, n)
	}
	totals := make([]float64, n)

	err := e.run(ctx, seed, streamRiskMatrix, n, func(s *distribution.Sampler, lo, hi int) {
		for i := lo; i < hi; i++ {
			var total float64
			for j, ev := range events {
				r := float64(s.Perturb(ev.Likelihood, matrixMin, matrixMax) * s.Perturb(ev.Severity, matrixMin, matrixMax))
				perEvent[j][i] = r
				total += r
			}
			totals[i] = total
		}
	})
	if err != nil {
		return nil, err
	}

	var nominal int
	for j, ev := range events {
		r := ev.RiskScore()
		nominal += r
		result.EventStats = append(result.EventStats,
			eventStats(ev.ID, ev.Name, r, perEvent[j], matrixHighThreshold))
	}
	result.GlobalStats = globalStats("Total Risk (sum of R)", float64(nominal), totals,
		float64(matrixHighThreshold*len(events)))
	result.HistogramData = histogram(totals)
	return result, nil
}

// SimulateFMEA resamples S, O and D of every item by +/-1 and tracks each
// item's RPN and the mission total.
func (e *MonteCarloEngine) SimulateFMEA(ctx context.Context, items []*models.FMEAItem, n int, seed uint64) (*MonteCarloAnalysis, error) {
	result := newAnalysis(MCFMEA, n)
	if len(items) == 0 {
		result.GlobalStats = &MCGlobalStats{IndicatorName: "Total RPN"}
		return result, nil
	}

	perItem := make([][]float64, len(items))
	for j := range perItem {
		perItem[j] = make([]float64, n)
	}
	totals := make([]float64, n)

	err := e.run(ctx, seed, streamFMEA, n, func(s *distribution.Sampler, lo, hi int) {
		for i := lo; i < hi; i++ {
			var total float64
			for j, it := range items {
				rpn := float64(s.Perturb(it.Severity, fmeaMin, fmeaMax) *
					s.Perturb(it.Occurrence, fmeaMin, fmeaMax) *
					s.Perturb(it.Detection, fmeaMin, fmeaMax))
				perItem[j][i] = rpn
				total += rpn
			}
			totals[i] = total
		}
	})
	if err != nil {
		return nil, err
	}

	var nominal int
	for j, it := range items {
		rpn := it.RPN()
		nominal += rpn
		result.EventStats = append(result.EventStats,
			eventStats(it.ID, it.FailureMode, rpn, perItem[j], fmeaHighThreshold))
	}
	result.GlobalStats = globalStats("Total RPN", float64(nominal), totals,
		float64(fmeaHighThreshold*len(items)))
	result.HistogramData = histogram(totals)
	return result, nil
}

// SimulateAHP resamples every indicator value from its family and
// recomputes the composite score (higher values are worse) against the
// fixed reference moments. Indicators without declared parameters are
// drawn from a normal around their moments.
func (e *MonteCarloEngine) SimulateAHP(ctx context.Context, inputs []IndicatorInput, n int, seed uint64) (*MonteCarloAnalysis, error) {
	result := newAnalysis(MCAHPScore, n)
	if len(inputs) == 0 {
		result.AHPStats = &MCAHPStats{}
		return result, nil
	}

	type samplingSpec struct {
		family models.DistributionType
		params models.DistParams
	}
	specs := make([]samplingSpec, len(inputs))
	for i, in := range inputs {
		specs[i] = samplingSpec{family: in.DistributionType, params: in.DistParams}
		if in.DistParams.IsEmpty() {
			specs[i] = samplingSpec{
				family: models.DistributionNormal,
				params: models.DistParams{Mu: models.Float64(in.Mu), Sigma: models.Float64(in.Sigma)},
			}
		}
	}

	scores := make([]float64, n)
	err := e.run(ctx, seed, streamAHP, n, func(s *distribution.Sampler, lo, hi int) {
		sampled := slices.Clone(inputs)
		for i := lo; i < hi; i++ {
			for j, in := range inputs {
				sampled[j].Value = s.Sample(specs[j].family, specs[j].params, in.Value)
			}
			scores[i] = CompositeScore(sampled, HigherWorse)
		}
	})
	if err != nil {
		return nil, err
	}

	st := summarize(scores)
	result.AHPStats = &MCAHPStats{
		NominalScore: round(CompositeScore(inputs, HigherWorse), 4),
		Mean:         round(st.Mean, 4),
		Std:          round(st.Std, 4),
		P50:          round(st.P50, 4),
		P90:          round(st.P90, 4),
		P95:          round(st.P95, 4),
		ProbHigh:     round(fractionAtLeast(scores, ahpHighThreshold), 4),
		ProbExtreme:  round(fractionAtLeast(scores, ahpExtremeThreshold), 4),
	}
	result.HistogramData = histogram(scores)
	return result, nil
}

// MonteCarloRecommendations flags analyses whose sampled high-risk
// probability is material.
func MonteCarloRecommendations(result *MonteCarloResult) []string {
	recs := []string{}
	for _, a := range []*MonteCarloAnalysis{result.RiskMatrix, result.FMEA, result.AHP} {
		if a == nil {
			continue
		}
		if gs := a.GlobalStats; gs != nil && gs.ProbHigh > mcGlobalAlertProb {
			recs = append(recs, fmt.Sprintf(
				"Monte Carlo analysis of %s (%d samples) shows a %.1f%% probability of a high-risk state; add redundancy to risk controls.",
				gs.IndicatorName, a.NSamples, gs.ProbHigh*100))
		}
		if as := a.AHPStats; as != nil && as.ProbHigh > mcAHPAlertProb {
			recs = append(recs,
				fmt.Sprintf("Monte Carlo analysis of the AHP composite score shows a %.1f%% probability of the high-risk band (score >= 0.5) and %.1f%% of the extreme band (score >= 0.75).",
					as.ProbHigh*100, as.ProbExtreme*100),
				"  • Reduce the uncertainty of key indicators",
				"  • Add early-warning monitoring",
			)
		}
	}
	return recs
}

// ============================================================================
// Model
// ============================================================================

type monteCarloModel struct {
	baseModel
	events     repositories.RiskEventRepository
	items      repositories.FMEARepository
	loader     indicatorLoader
	engine     *MonteCarloEngine
	maxSamples int
}

// NewMonteCarloModel creates the uncertainty propagation model.
func NewMonteCarloModel(
	events repositories.RiskEventRepository,
	items repositories.FMEARepository,
	indicators repositories.IndicatorRepository,
	datasets LatestDatasetSource,
	cfg MonteCarloConfig,
	logger *zap.Logger,
) AnalyticalModel {
	return &monteCarloModel{
		baseModel: newBaseModel(
			MonteCarloModelID,
			"Monte Carlo Simulation",
			"Resamples ratings and indicator values from their distributions to quantify the uncertainty of risk totals and the composite score.",
			CategoryUncertaintyAnalysis,
			[]ParamSpec{
				{
					Name:        "n_samples",
					Label:       "Samples",
					Type:        ParamInt,
					Default:     defaultSamples,
					Min:         bound(minSamples),
					Max:         bound(maxSamples),
					Description: "Number of Monte Carlo samples",
				},
				{
					Name:        "random_seed",
					Label:       "Random seed",
					Type:        ParamInt,
					Default:     defaultRandomSeed,
					Min:         bound(-1),
					Max:         bound(999999),
					Description: "Seed for reproducible runs (-1 for an unseeded run)",
				},
				{
					Name:        "run_risk_matrix",
					Label:       "Risk matrix",
					Type:        ParamBool,
					Default:     true,
					Description: "Sample risk event likelihood and severity",
				},
				{
					Name:        "run_fmea",
					Label:       "FMEA",
					Type:        ParamBool,
					Default:     true,
					Description: "Sample FMEA severity, occurrence and detection",
				},
				{
					Name:        "run_ahp",
					Label:       "AHP composite score",
					Type:        ParamBool,
					Default:     true,
					Description: "Sample indicator values and recompute the composite score",
				},
			},
			logger,
		),
		events:     events,
		items:      items,
		loader:     indicatorLoader{indicators: indicators, datasets: datasets},
		engine:     NewMonteCarloEngine(cfg),
		maxSamples: cfg.MaxSamples,
	}
}

var _ AnalyticalModel = (*monteCarloModel)(nil)

func (m *monteCarloModel) Run(ctx context.Context, rc RunContext) *ModelResult {
	return m.execute(ctx, rc, m.compute)
}

func (m *monteCarloModel) compute(ctx context.Context, rc RunContext) (any, []string, error) {
	n := rc.Params.Int("n_samples", defaultSamples)
	if n <= 0 {
		n = defaultSamples
	}
	if m.maxSamples > 0 && n > m.maxSamples {
		m.logger.Debug("Capping Monte Carlo samples",
			zap.Int("requested", n),
			zap.Int("max_samples", m.maxSamples))
		n = m.maxSamples
	}

	seed := rand.Uint64()
	if s := rc.Params.Int("random_seed", defaultRandomSeed); s >= 0 {
		seed = uint64(s)
	}

	result := &MonteCarloResult{}

	if rc.Params.Bool("run_risk_matrix", true) {
		events, err := m.events.GetByMission(ctx, rc.MissionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load risk events: %w", err)
		}
		if result.RiskMatrix, err = m.engine.SimulateRiskMatrix(ctx, events, n, seed); err != nil {
			return nil, nil, err
		}
	}

	if rc.Params.Bool("run_fmea", true) {
		items, err := m.items.GetByMission(ctx, rc.MissionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load FMEA items: %w", err)
		}
		if result.FMEA, err = m.engine.SimulateFMEA(ctx, items, n, seed); err != nil {
			return nil, nil, err
		}
	}

	if rc.Params.Bool("run_ahp", true) {
		inputs, _, err := m.loader.load(ctx, rc.MissionID, true, distribution.DefaultSigmaRatio)
		if err != nil {
			return nil, nil, err
		}
		if result.AHP, err = m.engine.SimulateAHP(ctx, inputs, n, seed); err != nil {
			return nil, nil, err
		}
	}

	return result, MonteCarloRecommendations(result), nil
}
