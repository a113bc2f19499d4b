// Package parse decodes raw command or response output into structured
// payloads.
package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Format names accepted by Decode.
const (
	FormatText    = "text"
	FormatLines   = "lines"
	FormatJSON    = "json"
	FormatTCQdisc = "tc-qdisc"
	FormatNDPI    = "ndpi"
)

type decoder func(raw []byte) (any, error)

var decoders = map[string]decoder{
	FormatText:    decodeText,
	FormatLines:   decodeLines,
	FormatJSON:    decodeJSON,
	FormatTCQdisc: func(raw []byte) (any, error) { return ParseQueueStats(string(raw)), nil },
	FormatNDPI:    func(raw []byte) (any, error) { return ParseDPI(string(raw)), nil },
}

// Formats lists the supported format names.
func Formats() []string {
	names := make([]string, 0, len(decoders))
	for name := range decoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supported reports whether format can be decoded. The empty format means text.
func Supported(format string) bool {
	if format == "" {
		return true
	}
	_, ok := decoders[format]
	return ok
}

// Decode converts raw into the payload for format.
func Decode(format string, raw []byte) (any, error) {
	if format == "" {
		format = FormatText
	}
	dec, ok := decoders[format]
	if !ok {
		return nil, fmt.Errorf("unsupported output format: %q", format)
	}
	return dec(raw)
}

func decodeText(raw []byte) (any, error) {
	return strings.TrimSpace(string(raw)), nil
}

func decodeLines(raw []byte) (any, error) {
	lines := make([]string, 0)
	for _, line := range strings.Split(string(raw), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// decodeJSON maps an empty document to an empty object.
func decodeJSON(raw []byte) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}
	return out, nil
}
