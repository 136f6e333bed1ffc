// Package forecast computes the household impact of an OBR economic forecast.
//
// A forecast is a set of annual growth rates for earned income, mixed
// (self-employment) income, capital income and consumer prices over the
// forecast window 2026-2030. Callers may override any rate; the Engine
// projects the forecast's indices, builds the gov.obr.* parameter reform a
// microsimulation would consume, and estimates the change in real household
// net income by income decile against the published baseline.
//
// Computations are deliberately slow when configured with latency, standing in
// for a full microsimulation run.
package forecast
