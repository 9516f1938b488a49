// Package logging is the structured logger the compiler uses for
// diagnostics — join-plan choices and fan-out warnings — built on
// zerolog the way the pack's notifuse service wraps it behind a small
// package-level logger rather than threading a logger value through
// every function signature.
package logging

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger().Level(zerolog.WarnLevel)
)

// SetLevel adjusts the default logger's verbosity, used by the CLI's
// --debug flag to surface join-plan and fan-out diagnostics that are
// silenced by default.
func SetLevel(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	log = log.Level(level)
}

// FanOutWarning records that a measure's home view sits on a fan-out
// path from the design's base view and is being symmetric-aggregate
// wrapped (spec §4.1, §4.3).
func FanOutWarning(baseView, fannedOutView string) {
	mu.RLock()
	defer mu.RUnlock()
	log.Warn().
		Str("base_view", baseView).
		Str("fanned_out_view", fannedOutView).
		Msg("join plan fans out; measures on this view will be symmetric-aggregate wrapped")
}

// JoinPlanChosen records the base view and join order the design
// resolver settled on for a request (spec §4.3 step 3).
func JoinPlanChosen(baseView string, joinedViews []string) {
	mu.RLock()
	defer mu.RUnlock()
	log.Debug().
		Str("base_view", baseView).
		Strs("joined_views", joinedViews).
		Msg("design resolver chose join plan")
}

// MergedBucketsChosen records how a merged request was split into
// (canon_date, join_graph_hash) buckets (spec §4.7 step 1).
func MergedBucketsChosen(bucketCount int) {
	mu.RLock()
	defer mu.RUnlock()
	log.Debug().Int("bucket_count", bucketCount).Msg("merged planner split request into buckets")
}

// CumulativePlanChosen records that a request was routed through the
// cumulative CTE pipeline (spec §4.6).
func CumulativePlanChosen(metricCount int) {
	mu.RLock()
	defer mu.RUnlock()
	log.Debug().Int("cumulative_metric_count", metricCount).Msg("cumulative planner engaged")
}
