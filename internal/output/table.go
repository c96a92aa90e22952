package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/feedbackd/feedbackd/internal/ratelimit"
)

// WindowRow summarizes one user's window at a point in time.
type WindowRow struct {
	UserID     string      `json:"user_id" yaml:"user_id"`
	Active     int         `json:"active" yaml:"active"`
	Remaining  int         `json:"remaining" yaml:"remaining"`
	Oldest     *time.Time  `json:"oldest,omitempty" yaml:"oldest,omitempty"`
	Newest     *time.Time  `json:"newest,omitempty" yaml:"newest,omitempty"`
	ResetsIn   int         `json:"resets_in_seconds" yaml:"resets_in_seconds"`
	Timestamps []time.Time `json:"timestamps" yaml:"timestamps"`
}

// WindowRows evaluates entries against a limit and window as of now.
// Inactive timestamps are dropped; users with none left are still listed so
// operators can see what a sweep would evict.
func WindowRows(entries []ratelimit.WindowEntry, limit int, window time.Duration, now time.Time) []WindowRow {
	cutoff := now.Add(-window)
	rows := make([]WindowRow, 0, len(entries))
	for _, entry := range entries {
		row := WindowRow{UserID: entry.UserID, Timestamps: []time.Time{}}
		for _, ts := range entry.Timestamps {
			if ts.After(cutoff) {
				row.Timestamps = append(row.Timestamps, ts.UTC())
			}
		}
		row.Active = len(row.Timestamps)
		row.Remaining = max(limit-row.Active, 0)
		if row.Active > 0 {
			oldest, newest := row.Timestamps[0], row.Timestamps[row.Active-1]
			row.Oldest, row.Newest = &oldest, &newest
			wait := oldest.Add(window).Sub(now)
			row.ResetsIn = int((wait + time.Second - 1) / time.Second)
		}
		rows = append(rows, row)
	}
	return rows
}

// WindowTable renders rows with go-pretty.
func WindowTable(rows []WindowRow, limit int) string {
	t := table.NewWriter()
	style := table.StyleRounded
	style.Format.Footer = text.FormatDefault
	t.SetStyle(style)
	t.AppendHeader(table.Row{"User", "Active", "Remaining", "Oldest", "Resets In"})

	limited := 0
	for _, row := range rows {
		oldest := "-"
		if row.Oldest != nil {
			oldest = row.Oldest.Format(time.RFC3339)
		}
		resets := "-"
		if row.ResetsIn > 0 {
			resets = (time.Duration(row.ResetsIn) * time.Second).String()
		}
		if row.Remaining == 0 {
			limited++
		}
		t.AppendRow(table.Row{row.UserID, fmt.Sprintf("%d/%d", row.Active, limit), row.Remaining, oldest, resets})
	}

	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d users, %d limited", len(rows), limited)})
	return t.Render() + "\n"
}
