package forecast

// decileProfile is the 2025 mean gross income mix and average effective tax
// rate of households in one income decile.
type decileProfile struct {
	earned, mixed, capital float64 // £ per year
	taxRate                float64
}

// Households per decile, UK 2025.
const householdsPerDecile = 2.86e6

var deciles = [10]decileProfile{
	{earned: 4_100, mixed: 600, capital: 400, taxRate: 0.04},
	{earned: 9_800, mixed: 1_100, capital: 700, taxRate: 0.08},
	{earned: 15_900, mixed: 1_500, capital: 900, taxRate: 0.12},
	{earned: 22_300, mixed: 1_900, capital: 1_100, taxRate: 0.15},
	{earned: 28_700, mixed: 2_300, capital: 1_400, taxRate: 0.17},
	{earned: 35_600, mixed: 2_800, capital: 1_800, taxRate: 0.19},
	{earned: 43_900, mixed: 3_400, capital: 2_300, taxRate: 0.21},
	{earned: 54_800, mixed: 4_300, capital: 3_100, taxRate: 0.23},
	{earned: 72_500, mixed: 6_200, capital: 4_900, taxRate: 0.26},
	{earned: 128_000, mixed: 15_400, capital: 14_700, taxRate: 0.32},
}

// householdImpact compares real net income in EndYear under scenario and
// baseline. Values are £ per household per year at base-year prices; overall
// is £bn across all households.
func householdImpact(baseline, scenario GrowthRates) ([]DecileImpact, Value) {
	out := make([]DecileImpact, len(deciles))
	var total float64

	for i, d := range deciles {
		base := realNetIncome(d, baseline)
		scen := realNetIncome(d, scenario)
		diff := scen - base

		out[i] = DecileImpact{
			Decile: i + 1,
			Value:  round(diff, 2),
			Pct:    round(diff/base*100, 4),
		}
		total += diff * householdsPerDecile
	}

	return out, Value{Value: round(total/1e9, 3), Unit: "£bn"}
}

func realNetIncome(d decileProfile, g GrowthRates) float64 {
	gross := d.earned*CumulativeGrowth(BaseYear, EndYear, g[EarnedIncome]) +
		d.mixed*CumulativeGrowth(BaseYear, EndYear, g[MixedIncome]) +
		d.capital*CumulativeGrowth(BaseYear, EndYear, g[CapitalIncome])
	return gross * (1 - d.taxRate) / CumulativeGrowth(BaseYear, EndYear, g[Inflation])
}
