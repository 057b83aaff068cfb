// Package usage tracks per-user embedding provider consumption as a
// daily ledger: one row per (user, provider, UTC day), incremented
// atomically as requests complete.
package usage

import (
	"context"
	"fmt"
	"time"
)

// DayFormat is the ledger day key layout.
const DayFormat = "2006-01-02"

// Day returns the ledger day key for a point in time, in UTC.
func Day(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// ParseDay validates a day key.
func ParseDay(s string) (string, error) {
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		return "", fmt.Errorf("invalid day %q, want YYYY-MM-DD: %w", s, err)
	}
	return Day(t), nil
}

// Totals accumulates request, token, and cost counters.
type Totals struct {
	Requests int     `json:"requests"`
	Tokens   int     `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// Add sums another set of totals into this one.
func (t *Totals) Add(other Totals) {
	t.Requests += other.Requests
	t.Tokens += other.Tokens
	t.Cost += other.Cost
}

// Record is one ledger row.
type Record struct {
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
	Day      string `json:"day"`
	Totals
}

// DailyUsage is a user's consumption for one day, broken down by
// provider. Days with no activity report zero totals, not an error.
type DailyUsage struct {
	Day       string            `json:"day"`
	Providers map[string]Totals `json:"providers"`
	Total     Totals            `json:"total"`
}

// Store persists the ledger. Increments must be atomic upserts: two
// concurrent requests on the same row both count.
type Store interface {
	// AddUsage increments the (userID, provider, day) row.
	AddUsage(ctx context.Context, userID, provider, day string, requests, tokens int, cost float64) error

	// UsageForDay returns the user's rows for one day.
	UsageForDay(ctx context.Context, userID, day string) ([]Record, error)
}

// Ledger is the usage accounting front door.
type Ledger struct {
	store Store
}

// NewLedger creates a ledger over a store.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Record counts one completed provider request.
func (l *Ledger) Record(ctx context.Context, userID, provider string, tokens int, cost float64) error {
	return l.store.AddUsage(ctx, userID, provider, Day(time.Now()), 1, tokens, cost)
}

// DailyUsage reports a user's consumption for the given day. Empty day
// means today in UTC. A day with no recorded usage returns zero
// totals.
func (l *Ledger) DailyUsage(ctx context.Context, userID, day string) (*DailyUsage, error) {
	if day == "" {
		day = Day(time.Now())
	} else {
		parsed, err := ParseDay(day)
		if err != nil {
			return nil, err
		}
		day = parsed
	}

	records, err := l.store.UsageForDay(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	out := &DailyUsage{Day: day, Providers: make(map[string]Totals)}
	for _, r := range records {
		existing := out.Providers[r.Provider]
		existing.Add(r.Totals)
		out.Providers[r.Provider] = existing
		out.Total.Add(r.Totals)
	}
	return out, nil
}
