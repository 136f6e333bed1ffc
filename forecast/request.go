package forecast

import (
	"encoding/json"
	"fmt"
)

// Request asks for the impact of a forecast, optionally with overridden
// growth rates.
type Request struct {
	ForecastID string      `json:"forecast_id"`
	Parameters GrowthRates `json:"parameters,omitempty"`

	// Metrics limits the per-metric series in the result. Empty means all.
	Metrics []Metric `json:"metrics,omitempty"`
}

// Validate checks the request against the catalog.
func (r Request) Validate() error {
	if _, err := Lookup(r.ForecastID); err != nil {
		return err
	}
	if err := r.Parameters.Validate(); err != nil {
		return err
	}
	for _, m := range r.Metrics {
		if !m.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownMetric, m)
		}
	}
	return nil
}

func (r Request) selected() []Metric {
	if len(r.Metrics) == 0 {
		return Metrics
	}
	out := make([]Metric, 0, len(r.Metrics))
	for _, m := range Metrics {
		for _, want := range r.Metrics {
			if m == want {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// RequestFrom reads params as a Request. Values that are not already a
// Request round-trip through JSON.
func RequestFrom(params any) (Request, error) {
	switch p := params.(type) {
	case Request:
		return p, nil
	case *Request:
		if p == nil {
			return Request{}, fmt.Errorf("%w: nil request", ErrInvalidParams)
		}
		return *p, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return req, nil
}

// Normalize returns r with Metrics deduplicated in report order, so that two
// requests naming the same set of metrics compare and hash equal. A selection
// of every metric and an empty selection both normalize to nil.
func (r Request) Normalize() Request {
	if len(r.Metrics) > 0 {
		r.Metrics = r.selected()
	}
	if len(r.Metrics) == 0 || len(r.Metrics) == len(Metrics) {
		r.Metrics = nil
	}
	if len(r.Parameters) > 0 {
		params := make(GrowthRates, len(r.Parameters))
		for m, byYear := range r.Parameters {
			if len(byYear) > 0 {
				params[m] = byYear
			}
		}
		if len(params) == 0 {
			params = nil
		}
		r.Parameters = params
	}
	return r
}
