package parse

import (
	"regexp"
	"strings"
)

// DPISummary counts packets per detected protocol in ndpiReader output.
type DPISummary struct {
	TotalPackets   int            `json:"total_packets"`
	ProtocolCounts map[string]int `json:"protocol_counts"`
}

var protoRe = regexp.MustCompile(`\[proto:\s*[\d.]+[/.]\s*(.*?)\]`)

// signatures maps payload markers to application labels. Matching lines are
// counted under the label in addition to their protocol.
var signatures = []struct {
	marker string
	label  string
}{
	{"Content-Type: audio/mpeg", "MP3"},
	{"Content-Type: video/mp4", "MP4"},
	{"Host: youtube.com", "YouTube"},
	{"Host: zoom.us", "Zoom"},
	{"SNI: zoom.us", "Zoom"},
	{"SNI: youtube.com", "YouTube"},
	{"BitTorrent", "BitTorrent"},
}

// ParseDPI summarizes ndpiReader verbose output.
func ParseDPI(output string) DPISummary {
	summary := DPISummary{ProtocolCounts: make(map[string]int)}

	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "[proto:") {
			continue
		}
		summary.TotalPackets++

		if m := protoRe.FindStringSubmatch(line); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" {
				summary.ProtocolCounts[name]++
			}
		}

		for _, sig := range signatures {
			if strings.Contains(line, sig.marker) {
				summary.ProtocolCounts[sig.label]++
			}
		}
	}
	return summary
}
