// Package observe provides observability primitives for asynchronous jobs.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The runner wires the Middleware around every
// computation unit and reports submissions through it.
package observe
