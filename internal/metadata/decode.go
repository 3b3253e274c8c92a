package metadata

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	jsonpPrefixConstant          = "updateCenter.post("
	jsonpSuffixConstant          = ");"
	csvNameColumnConstant        = 0
	csvCountColumnConstant       = 1
	csvMinimumColumnsConstant    = 2
	invalidCountTemplateConstant = "invalid installation count %q for %s on line %d"
)

var errEmptyPayload = errors.New("empty payload")

// DecodeUpdateCenter parses the registry JSON. The JSONP wrapper served by some mirrors is accepted.
func DecodeUpdateCenter(payload []byte) (UpdateCenter, error) {
	trimmed := bytes.TrimSpace(payload)
	if bytes.HasPrefix(trimmed, []byte(jsonpPrefixConstant)) {
		trimmed = bytes.TrimPrefix(trimmed, []byte(jsonpPrefixConstant))
		trimmed = bytes.TrimSuffix(bytes.TrimSpace(trimmed), []byte(jsonpSuffixConstant))
		trimmed = bytes.TrimSuffix(trimmed, []byte(")"))
	}
	snapshot := UpdateCenter{}
	if decodeError := decodeJSON(trimmed, &snapshot); decodeError != nil {
		return UpdateCenter{}, DecodeError{Snapshot: UpdateCenterKey, Cause: decodeError}
	}
	if snapshot.Plugins == nil {
		snapshot.Plugins = map[string]UpdateCenterPlugin{}
	}
	if snapshot.Deprecations == nil {
		snapshot.Deprecations = map[string]Deprecation{}
	}
	return snapshot, nil
}

// DecodeHealthScores parses the health score JSON.
func DecodeHealthScores(payload []byte) (HealthScores, error) {
	snapshot := HealthScores{}
	if decodeError := decodeJSON(payload, &snapshot); decodeError != nil {
		return HealthScores{}, DecodeError{Snapshot: HealthScoresKey, Cause: decodeError}
	}
	if snapshot.Plugins == nil {
		snapshot.Plugins = map[string]HealthScore{}
	}
	return snapshot, nil
}

// DecodePluginVersions parses the version table JSON.
func DecodePluginVersions(payload []byte) (PluginVersions, error) {
	snapshot := PluginVersions{}
	if decodeError := decodeJSON(payload, &snapshot); decodeError != nil {
		return PluginVersions{}, DecodeError{Snapshot: PluginVersionsKey, Cause: decodeError}
	}
	if snapshot.Plugins == nil {
		snapshot.Plugins = map[string]map[string]PluginVersion{}
	}
	return snapshot, nil
}

// DecodeInstallationStats parses the "name,count" CSV report. A non-numeric first row is treated as a header.
func DecodeInstallationStats(payload []byte) (InstallationStats, error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	snapshot := InstallationStats{Plugins: map[string]int{}}
	lineNumber := 0
	for {
		record, readError := reader.Read()
		if errors.Is(readError, io.EOF) {
			break
		}
		if readError != nil {
			return InstallationStats{}, DecodeError{Snapshot: InstallationStatsKey, Cause: readError}
		}
		lineNumber++
		if len(record) < csvMinimumColumnsConstant {
			continue
		}
		name := strings.TrimSpace(record[csvNameColumnConstant])
		countText := strings.TrimSpace(record[csvCountColumnConstant])
		count, parseError := strconv.Atoi(countText)
		if parseError != nil {
			if lineNumber == 1 {
				continue
			}
			return InstallationStats{}, DecodeError{Snapshot: InstallationStatsKey, Cause: fmt.Errorf(invalidCountTemplateConstant, countText, name, lineNumber)}
		}
		if len(name) == 0 {
			continue
		}
		snapshot.Plugins[name] = count
	}
	return snapshot, nil
}

func decodeJSON(payload []byte, target any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return errEmptyPayload
	}
	return json.Unmarshal(payload, target)
}
