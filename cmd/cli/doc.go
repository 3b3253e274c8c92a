// Package cli constructs the plugin-modernizer command-line interface, wiring
// the Cobra command hierarchy, the layered configuration loader (embedded
// defaults, config file, .env files and MODERNIZER_ environment variables) and
// structured logging.
package cli
