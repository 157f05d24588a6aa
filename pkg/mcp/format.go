package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/faqbot/pkg/models"
)

// formatDecision formats a routing decision as text.
func formatDecision(d models.Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source:   %s (%s)\n", d.Source, d.Source.Label())
	if d.HasDistance {
		fmt.Fprintf(&b, "Distance: %.4f\n", d.Distance)
	}
	b.WriteString("\n")
	b.WriteString(d.Answer)
	return b.String()
}

// formatNeighbors formats cache neighbours as a text table.
func formatNeighbors(ns []models.Neighbor) string {
	if len(ns) == 0 {
		return "Cache is empty."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%5s %8s  %s\n", "Row", "Distance", "Question")
	b.WriteString(strings.Repeat("-", 70) + "\n")
	for _, n := range ns {
		fmt.Fprintf(&b, "%5d %8.4f  %s\n", n.Index, n.Distance, oneLine(n.Question, 55))
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	built := "never"
	if !stats.BuiltAt.IsZero() {
		built = stats.BuiltAt.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Rows:       %d\n"+
		"  Vocabulary: %d\n"+
		"  Lookups:    %d\n"+
		"  Rebuilds:   %d\n"+
		"  Built:      %s\n",
		stats.Rows, stats.Vocabulary, stats.Lookups, stats.Rebuilds, built)
}

// formatAuditEntries formats decision log entries as a text table.
func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-12s %-10s %8s %8s  %s\n",
		"Time", "Session", "Source", "Distance", "Latency", "Question")
	b.WriteString(strings.Repeat("-", 100) + "\n")
	for _, e := range entries {
		dist := "-"
		if e.HasDistance {
			dist = fmt.Sprintf("%.4f", e.Distance)
		}
		fmt.Fprintf(&b, "%-20s %-12s %-10s %8s %6dms  %s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			shortID(e.SessionID), e.Source, dist, e.LatencyMs, oneLine(e.Question, 40))
	}
	return b.String()
}

// formatBudgetStatus formats budget statuses as a text table.
func formatBudgetStatus(statuses []models.BudgetStatus) string {
	if len(statuses) == 0 {
		return "No budget policies found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %12s %12s %12s %6s\n",
		"Period", "Max", "Used", "Remaining", "Usage%")
	b.WriteString(strings.Repeat("-", 54) + "\n")
	for _, s := range statuses {
		pct := float64(0)
		if s.Policy.MaxGenerations > 0 {
			pct = float64(s.Used) / float64(s.Policy.MaxGenerations) * 100
		}
		fmt.Fprintf(&b, "%-8s %12d %12d %12d %5.1f%%\n",
			s.Policy.Period, s.Policy.MaxGenerations, s.Used, s.Remaining, pct)
	}
	return b.String()
}

// formatSessions formats sessions as a text table.
func formatSessions(sessions []models.Session) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-20s %-20s %6s  %s\n",
		"Session ID", "Started", "Last Activity", "Turns", "Last Question")
	b.WriteString(strings.Repeat("-", 120) + "\n")
	for _, s := range sessions {
		fmt.Fprintf(&b, "%-38s %-20s %-20s %6d  %s\n",
			s.ID,
			s.StartedAt.Format("2006-01-02 15:04:05"),
			s.LastActivity.Format("2006-01-02 15:04:05"),
			s.TurnCount, oneLine(s.LastQuestion, 30))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:8] + "..."
	}
	return id
}

// oneLine collapses whitespace and truncates to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}
