// Package main hosts the folio CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, wires the configured
// rendering and recognition backends into the conversion pipeline and
// presents progress either as terminal bars or as sampled log lines. The
// conversion logic itself lives in the internal packages; commands here only
// translate flags and render results.
package main
