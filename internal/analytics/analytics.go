package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"topic-chatter/internal/storage"
)

// DailyStats summarizes the turn journal for one day.
type DailyStats struct {
	Date           string         `json:"date"`
	TotalTurns     int            `json:"total_turns"`
	UniqueSessions int            `json:"unique_sessions"`
	ByOutcome      map[string]int `json:"by_outcome"`
	ByProfile      map[string]int `json:"by_profile"`
	TotalTokens    int            `json:"total_tokens"`
}

// AnalyzeDailyTurns counts the events whose timestamp falls on targetDate
// (in targetDate's location).
func AnalyzeDailyTurns(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	stats := &DailyStats{
		Date:      startOfDay.Format("2006-01-02"),
		ByOutcome: make(map[string]int),
		ByProfile: make(map[string]int),
	}
	sessions := make(map[string]bool)

	for _, ev := range events {
		if ev.Timestamp.Before(startOfDay) || !ev.Timestamp.Before(endOfDay) {
			continue
		}
		stats.TotalTurns++
		sessions[ev.SessionID] = true
		stats.ByOutcome[ev.Outcome]++
		if ev.Profile != "" {
			stats.ByProfile[ev.Profile]++
		}
		stats.TotalTokens += ev.TotalTokens
	}

	stats.UniqueSessions = len(sessions)
	return stats
}

// RefusalRate is the share of turns answered with the canned refusal.
func (ds *DailyStats) RefusalRate() float64 {
	if ds.TotalTurns == 0 {
		return 0
	}
	return float64(ds.ByOutcome["refused"]) / float64(ds.TotalTurns)
}

func (ds *DailyStats) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Turns on %s: %d in %d sessions, refused %.0f%%, tokens %d",
		ds.Date, ds.TotalTurns, ds.UniqueSessions, ds.RefusalRate()*100, ds.TotalTokens)

	outcomes := make([]string, 0, len(ds.ByOutcome))
	for k := range ds.ByOutcome {
		outcomes = append(outcomes, k)
	}
	sort.Strings(outcomes)
	for _, k := range outcomes {
		fmt.Fprintf(&b, "; %s=%d", k, ds.ByOutcome[k])
	}
	return b.String()
}

func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
