// Package versions compares dotted version strings component by component.
//
// Jenkins core and plugin versions mix two, three, and four numeric components
// with optional qualifiers ("2.346.1", "2.440", "1.2-rc-1", "3.9.7"), so neither
// lexical comparison nor strict semantic versioning applies.
package versions

import (
	"strconv"
	"strings"
	"unicode"
)

const componentSeparatorsConstant = ".-"

type component struct {
	numeric   bool
	number    uint64
	qualifier string
}

// Compare returns -1, 0, or 1 when left is lower than, equal to, or greater than right.
// Numeric components compare numerically, qualifiers lexically (case-insensitive), missing
// trailing components count as zero, and a qualifier sorts below a numeric component so a
// release outranks its pre-releases.
func Compare(left string, right string) int {
	leftComponents := split(left)
	rightComponents := split(right)

	componentCount := max(len(leftComponents), len(rightComponents))
	for componentIndex := 0; componentIndex < componentCount; componentIndex++ {
		leftComponent := componentAt(leftComponents, componentIndex)
		rightComponent := componentAt(rightComponents, componentIndex)
		if comparison := compareComponent(leftComponent, rightComponent); comparison != 0 {
			return comparison
		}
	}
	return 0
}

// AtLeast reports whether candidate is greater than or equal to floor.
func AtLeast(candidate string, floor string) bool {
	return Compare(candidate, floor) >= 0
}

// Valid reports whether version has a leading numeric component.
func Valid(version string) bool {
	components := split(version)
	return len(components) > 0 && components[0].numeric
}

func split(version string) []component {
	fields := strings.FieldsFunc(strings.TrimSpace(version), func(character rune) bool {
		return strings.ContainsRune(componentSeparatorsConstant, character)
	})

	components := make([]component, 0, len(fields))
	for _, field := range fields {
		components = append(components, parseComponent(field)...)
	}
	return components
}

// parseComponent splits mixed fields such as "1beta2" into numeric and qualifier runs.
func parseComponent(field string) []component {
	var components []component
	runStart := 0
	for characterIndex := 1; characterIndex <= len(field); characterIndex++ {
		if characterIndex < len(field) && isDigit(field[characterIndex]) == isDigit(field[runStart]) {
			continue
		}
		run := field[runStart:characterIndex]
		if isDigit(run[0]) {
			number, parseError := strconv.ParseUint(run, 10, 64)
			if parseError == nil {
				components = append(components, component{numeric: true, number: number})
			} else {
				components = append(components, component{qualifier: run})
			}
		} else {
			components = append(components, component{qualifier: strings.ToLower(run)})
		}
		runStart = characterIndex
	}
	return components
}

func componentAt(components []component, index int) component {
	if index < len(components) {
		return components[index]
	}
	return component{numeric: true}
}

func compareComponent(left component, right component) int {
	switch {
	case left.numeric && right.numeric:
		return compareOrdered(left.number, right.number)
	case left.numeric:
		return 1
	case right.numeric:
		return -1
	default:
		return strings.Compare(left.qualifier, right.qualifier)
	}
}

func compareOrdered(left uint64, right uint64) int {
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

func isDigit(character byte) bool {
	return unicode.IsDigit(rune(character))
}
