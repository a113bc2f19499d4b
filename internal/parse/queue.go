package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// Congestion thresholds applied to queue statistics.
const (
	CongestionBacklogBytes = 10000
	CongestionDrops        = 20
	CongestionOverlimits   = 100
)

// QueueStats is the summary of one `tc -s qdisc show` block.
type QueueStats struct {
	Backlog             int64 `json:"backlog"`
	BacklogPackets      int64 `json:"backlog_packets"`
	Drops               int64 `json:"drops"`
	Overlimits          int64 `json:"overlimits"`
	CongestionPredicted int   `json:"congestion_predicted"`
}

var (
	backlogRe    = regexp.MustCompile(`backlog\s+(\d+)([a-zA-Z]*)\s+(\d+)p`)
	dropsRe      = regexp.MustCompile(`drop(?:ped)?\s+(\d+)`)
	overlimitsRe = regexp.MustCompile(`overlimits\s+(\d+)`)
)

// ParseQueueStats reads the first backlog, drop and overlimit counters from
// tc output. Missing counters stay zero.
func ParseQueueStats(output string) QueueStats {
	var stats QueueStats

	if m := backlogRe.FindStringSubmatch(output); m != nil {
		size, _ := strconv.ParseInt(m[1], 10, 64)
		unit := strings.ToLower(m[2])
		switch {
		case strings.HasPrefix(unit, "k"):
			size *= 1000
		case strings.HasPrefix(unit, "m"):
			size *= 1000000
		}
		stats.Backlog = size
		stats.BacklogPackets, _ = strconv.ParseInt(m[3], 10, 64)
	}

	if m := dropsRe.FindStringSubmatch(output); m != nil {
		stats.Drops, _ = strconv.ParseInt(m[1], 10, 64)
	}
	if m := overlimitsRe.FindStringSubmatch(output); m != nil {
		stats.Overlimits, _ = strconv.ParseInt(m[1], 10, 64)
	}

	if Congested(stats) {
		stats.CongestionPredicted = 1
	}
	return stats
}

// Congested applies the rule-based congestion predictor.
func Congested(s QueueStats) bool {
	return s.Backlog > CongestionBacklogBytes ||
		s.Drops > CongestionDrops ||
		s.Overlimits > CongestionOverlimits
}
