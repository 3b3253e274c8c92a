// Package modernizer drives the per-plugin modernization workflow for a batch of plugins.
//
// A Modernizer resolves remote metadata, forks and clones each plugin, selects a
// compatible JDK, runs the build and the selected recipe, then commits, pushes and
// opens a pull request. Failures are recorded on the plugin and never abort the
// rest of the batch. The package also provides the run, validate and cleanup
// commands.
package modernizer
