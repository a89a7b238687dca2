// Package config loads CapMesh runtime configuration from a YAML file and
// CAPMESH_* environment variables, with sane defaults for every knob. It
// only produces a validated Config value; wiring the components from it
// happens in the root package and cmd/capmeshd.
package config
