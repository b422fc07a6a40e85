// Package raster splits a multi-page document into one PNG per page inside a
// private scratch workspace.
//
// Split resolves the page count first, then creates the workspace and renders
// pages with a bounded pool of workers that pull page indexes from a shared
// queue. The returned image paths are sorted by file name, which fixes the
// page order for everything downstream. Any failure after the workspace exists
// removes it before Split returns.
package raster
