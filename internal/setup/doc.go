// Package setup resolves file locations, reads the optional settings file
// and wires the engine together for the command layer.
//
// This package is essentially a collection of constants and wiring, and is
// therefore the only package that is allowed to call a global logger.
package setup
