package forecast

import (
	"fmt"
	"slices"
)

// Forecast window.
const (
	StartYear  = 2026
	CountYears = 5
	EndYear    = StartYear + CountYears - 1
	BaseYear   = StartYear - 1
)

// Metric names a modelled growth series.
type Metric string

const (
	EarnedIncome  Metric = "earned_income"
	MixedIncome   Metric = "mixed_income"
	CapitalIncome Metric = "capital_income"
	Inflation     Metric = "inflation"
)

// Metrics lists every modelled metric in report order.
var Metrics = []Metric{EarnedIncome, MixedIncome, CapitalIncome, Inflation}

// Valid reports whether m is a modelled metric.
func (m Metric) Valid() bool {
	return slices.Contains(Metrics, m)
}

// ParameterPath returns the gov.obr parameter the metric's index drives.
func (m Metric) ParameterPath() string {
	switch m {
	case EarnedIncome:
		return "gov.obr.employment_income"
	case MixedIncome:
		return "gov.obr.mixed_income"
	case CapitalIncome:
		return "gov.obr.non_labour_income"
	case Inflation:
		return "gov.obr.consumer_price_index"
	}
	return ""
}

// Years returns the forecast window.
func Years() []int {
	years := make([]int, 0, CountYears)
	for y := StartYear; y <= EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// Forecast describes a published forecast.
type Forecast struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Date string `json:"date"`

	growth    GrowthRates
	baseIndex map[Metric]float64
}

// Growth returns a copy of the forecast's published growth rates.
func (f Forecast) Growth() GrowthRates {
	return f.growth.Clone()
}

// GrowthRates maps metric to year to fractional annual growth (0.021 = 2.1%).
type GrowthRates map[Metric]map[int]float64

// Clone returns a deep copy.
func (g GrowthRates) Clone() GrowthRates {
	out := make(GrowthRates, len(g))
	for m, byYear := range g {
		cp := make(map[int]float64, len(byYear))
		for y, v := range byYear {
			cp[y] = v
		}
		out[m] = cp
	}
	return out
}

// Merge returns g with every rate in overrides applied on top.
func (g GrowthRates) Merge(overrides GrowthRates) GrowthRates {
	out := g.Clone()
	for m, byYear := range overrides {
		if out[m] == nil {
			out[m] = make(map[int]float64, len(byYear))
		}
		for y, v := range byYear {
			out[m][y] = v
		}
	}
	return out
}

// Validate checks every metric, year and rate.
func (g GrowthRates) Validate() error {
	for m, byYear := range g {
		if !m.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownMetric, m)
		}
		for y, v := range byYear {
			if y < StartYear || y > EndYear {
				return fmt.Errorf("%w: %s %d (want %d-%d)", ErrInvalidYear, m, y, StartYear, EndYear)
			}
			if v <= -1 {
				return fmt.Errorf("%w: %s %d = %v", ErrInvalidRate, m, y, v)
			}
		}
	}
	return nil
}

// Growth rates are rounded to 0.1pp as published; base indices are the
// 2025 outturn levels.
var catalog = []Forecast{
	{
		ID:   "spring_2025",
		Name: "Spring 2025",
		Date: "2025-03-27",
		growth: GrowthRates{
			EarnedIncome:  {2026: 0.022, 2027: 0.021, 2028: 0.023, 2029: 0.025, 2030: 0.026},
			MixedIncome:   {2026: 0.030, 2027: 0.029, 2028: 0.031, 2029: 0.032, 2030: 0.033},
			CapitalIncome: {2026: 0.025, 2027: 0.028, 2028: 0.030, 2029: 0.031, 2030: 0.032},
			Inflation:     {2026: 0.021, 2027: 0.020, 2028: 0.020, 2029: 0.020, 2030: 0.020},
		},
		baseIndex: map[Metric]float64{
			EarnedIncome:  1076.4,
			MixedIncome:   147.1,
			CapitalIncome: 378.2,
			Inflation:     139.2,
		},
	},
}

// Catalog lists the available forecasts.
func Catalog() []Forecast {
	return slices.Clone(catalog)
}

// Lookup returns the forecast with the given id.
func Lookup(id string) (Forecast, error) {
	for _, f := range catalog {
		if f.ID == id {
			return f, nil
		}
	}
	return Forecast{}, fmt.Errorf("%w: %q", ErrUnknownForecast, id)
}
