// Package docker provides the command layer between disposable and a container
// engine.
//
// It opens a connection to a local or remote engine, verifies connectivity at
// construction, and exposes one method per engine command. Every command
// converts engine and transport failures into a sentinel result plus a
// *CommandError. The Client type is the main entry point.
package docker
