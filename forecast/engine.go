package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Latency is added to every computation to model a microsimulation run.
	Latency time.Duration
}

// Engine computes forecast impacts. It is safe for concurrent use.
type Engine struct {
	config EngineConfig
}

// NewEngine creates an Engine.
func NewEngine(config ...EngineConfig) *Engine {
	var cfg EngineConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Latency < 0 {
		cfg.Latency = 0
	}
	return &Engine{config: cfg}
}

// Value is an amount with a unit.
type Value struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// DecileImpact is the change in mean real household net income for a decile
// in the final forecast year.
type DecileImpact struct {
	Decile int     `json:"decile"`
	Value  float64 `json:"value"`
	Pct    float64 `json:"pct"`
}

// Impact is the result of a computation.
type Impact struct {
	ForecastID string `json:"forecast_id"`
	Years      []int  `json:"years"`

	GrowthRates      GrowthRates `json:"growth_rates"`
	CumulativeGrowth GrowthRates `json:"cumulative_growth"`

	// Deviation is cumulative growth minus the baseline's, per metric and year.
	Deviation GrowthRates `json:"deviation"`

	// Reform maps gov.obr parameter paths to period to index level.
	Reform map[string]map[string]float64 `json:"reform"`

	Overall  Value          `json:"overall"`
	ByDecile []DecileImpact `json:"by_decile"`
}

// Compute validates req and computes its impact. It returns ctx.Err() if ctx
// ends during the simulated latency.
func (e *Engine) Compute(ctx context.Context, req Request) (*Impact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	f, _ := Lookup(req.ForecastID)

	if e.config.Latency > 0 {
		timer := time.NewTimer(e.config.Latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	baseline := f.growth
	scenario := baseline.Merge(req.Parameters)

	impact := &Impact{
		ForecastID:       f.ID,
		Years:            Years(),
		GrowthRates:      make(GrowthRates),
		CumulativeGrowth: make(GrowthRates),
		Deviation:        make(GrowthRates),
		Reform:           make(map[string]map[string]float64),
	}

	for _, m := range req.selected() {
		impact.GrowthRates[m] = make(map[int]float64, CountYears)
		impact.CumulativeGrowth[m] = make(map[int]float64, CountYears)
		impact.Deviation[m] = make(map[int]float64, CountYears)
		for _, y := range impact.Years {
			cum := CumulativeGrowth(BaseYear, y, scenario[m])
			impact.GrowthRates[m][y] = scenario[m][y]
			impact.CumulativeGrowth[m][y] = round(cum, 6)
			impact.Deviation[m][y] = round(cum-CumulativeGrowth(BaseYear, y, baseline[m]), 6)
		}
	}

	// The reform always carries every index: the simulation needs all four.
	for _, m := range Metrics {
		impact.Reform[m.ParameterPath()] = ReformPath(f.baseIndex[m], scenario[m])
	}

	impact.ByDecile, impact.Overall = householdImpact(baseline, scenario)
	return impact, nil
}

// CumulativeGrowth compounds rates from the year after base through target.
// Missing years count as zero growth.
func CumulativeGrowth(base, target int, rates map[int]float64) float64 {
	cum := 1.0
	for y := base + 1; y <= target; y++ {
		cum *= 1 + rates[y]
	}
	return cum
}

// ReformPath projects an index from its base-year level through the forecast
// window, keyed by "YYYY-01-01.YYYY-12-31" periods.
func ReformPath(baseLevel float64, rates map[int]float64) map[string]float64 {
	out := make(map[string]float64, CountYears)
	level := baseLevel
	for _, y := range Years() {
		level *= 1 + rates[y]
		out[Period(y)] = round(level, 6)
	}
	return out
}

// Period formats a calendar-year parameter period.
func Period(year int) string {
	return fmt.Sprintf("%d-01-01.%d-12-31", year, year)
}

// Executor adapts e to a computation taking opaque parameters and returning
// JSON.
func Executor(e *Engine) func(ctx context.Context, namespace string, params any) ([]byte, error) {
	return func(ctx context.Context, _ string, params any) ([]byte, error) {
		req, err := RequestFrom(params)
		if err != nil {
			return nil, err
		}
		impact, err := e.Compute(ctx, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(impact)
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
