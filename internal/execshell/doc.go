// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner for
// default process execution, and defines the abstractions the modernizer uses
// to run git, gh, and the build tool in a testable manner.
package execshell
