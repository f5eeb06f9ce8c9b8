// Package logging provides concrete implementations of the geoload.Logger interface.
//
// ConsoleLogger writes to stderr (or any io.Writer) and is what the CLI uses.
// NullLogger discards everything and is what most tests use.
package logging
