// Package recipes holds the catalogue of named code transformations, renders the
// commit and pull request text associated with them, and exposes the recipes command.
package recipes
