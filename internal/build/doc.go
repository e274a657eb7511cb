// Package build runs a complete asset build: it resolves the module graph,
// plans chunks, emits artifacts and pages into a staging directory and
// promotes the staging directory over the output directory on success.
//
// All execution paths (CLI build, dev session rebuilds, inspection) route
// through Service so that staging, reporting and metrics behave the same.
package build
