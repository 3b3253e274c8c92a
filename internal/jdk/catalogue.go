package jdk

import (
	"errors"
	"fmt"

	"github.com/temirov/pluginmodernizer/internal/versions"
)

const (
	jdkStringTemplateConstant             = "JDK %d"
	noCompatibleToolchainMessageConstant  = "no compatible toolchain"
	noCompatibleToolchainTemplateConstant = "%w for core %s"
)

// ErrNoCompatibleToolchain indicates that no catalogued major supports a core version.
var ErrNoCompatibleToolchain = errors.New(noCompatibleToolchainMessageConstant)

// JDK describes one supported toolchain major and the core version range it can build for.
// Empty bounds are open.
type JDK struct {
	Major           int
	LTS             bool
	CompatibleSince string
	MaxCoreVersion  string
}

// catalogue is ordered by ascending major.
var catalogue = []JDK{
	{Major: 8, LTS: true, MaxCoreVersion: "2.346.3"},
	{Major: 11, LTS: true, MaxCoreVersion: "2.462.3"},
	{Major: 17, LTS: true, CompatibleSince: "2.346.1"},
	{Major: 21, LTS: true, CompatibleSince: "2.426.1"},
}

// String renders the toolchain as "JDK <major>".
func (toolchain JDK) String() string {
	return fmt.Sprintf(jdkStringTemplateConstant, toolchain.Major)
}

// Supports reports whether coreVersion lies within the inclusive compatibility range.
func (toolchain JDK) Supports(coreVersion string) bool {
	if len(toolchain.CompatibleSince) > 0 && versions.Compare(coreVersion, toolchain.CompatibleSince) < 0 {
		return false
	}
	if len(toolchain.MaxCoreVersion) > 0 && versions.Compare(coreVersion, toolchain.MaxCoreVersion) > 0 {
		return false
	}
	return true
}

// Next returns the catalogue entry with the next higher major, or nil for the newest.
func (toolchain JDK) Next() *JDK {
	for catalogueIndex := range catalogue {
		if catalogue[catalogueIndex].Major > toolchain.Major {
			next := catalogue[catalogueIndex]
			return &next
		}
	}
	return nil
}

// Previous returns the catalogue entry with the next lower major, or nil for the oldest.
func (toolchain JDK) Previous() *JDK {
	for catalogueIndex := len(catalogue) - 1; catalogueIndex >= 0; catalogueIndex-- {
		if catalogue[catalogueIndex].Major < toolchain.Major {
			previous := catalogue[catalogueIndex]
			return &previous
		}
	}
	return nil
}

// All returns a copy of the catalogue in ascending major order.
func All() []JDK {
	return append([]JDK{}, catalogue...)
}

// Get returns the catalogue entry for major, or nil when it is not catalogued.
func Get(major int) *JDK {
	for _, toolchain := range catalogue {
		if toolchain.Major == major {
			found := toolchain
			return &found
		}
	}
	return nil
}

// CompatibleWith returns every catalogue entry whose range contains coreVersion, ascending.
func CompatibleWith(coreVersion string) []JDK {
	compatible := make([]JDK, 0, len(catalogue))
	for _, toolchain := range catalogue {
		if toolchain.Supports(coreVersion) {
			compatible = append(compatible, toolchain)
		}
	}
	return compatible
}

// Min returns the oldest catalogued toolchain.
func Min() JDK {
	return catalogue[0]
}

// Max returns the newest catalogued toolchain.
func Max() JDK {
	return catalogue[len(catalogue)-1]
}

// MinOf returns the lowest-major entry of toolchains, or the catalogue minimum when the list is empty.
func MinOf(toolchains []JDK) JDK {
	if len(toolchains) == 0 {
		return Min()
	}
	lowest := toolchains[0]
	for _, toolchain := range toolchains[1:] {
		if toolchain.Major < lowest.Major {
			lowest = toolchain
		}
	}
	return lowest
}

// Select picks the most conservative toolchain able to build for coreVersion.
// An empty compatible set is a precondition failure rather than a fallback.
func Select(coreVersion string) (JDK, error) {
	compatible := CompatibleWith(coreVersion)
	if !versions.Valid(coreVersion) || len(compatible) == 0 {
		return JDK{}, fmt.Errorf(noCompatibleToolchainTemplateConstant, ErrNoCompatibleToolchain, coreVersion)
	}
	return MinOf(compatible), nil
}
