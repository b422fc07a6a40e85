// Package preflight checks that a conversion run can start: the configured
// rendering tools exist, the workspace directory is writable with room for
// page images, and the recognition processor has what it needs.
//
// The convert command runs these before touching any document; the deps
// command prints them.
package preflight
