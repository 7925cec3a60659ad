// Package report turns per-site run stats into run summaries and records
// them to the stats log and the run stream.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"sjsage522/listingworker/internal/persist"
	"sjsage522/listingworker/services/publisher"
)

// Summary is one entry of the stats log
type Summary struct {
	Timestamp    time.Time         `json:"timestamp"`
	RunID        string            `json:"run_id,omitempty"`
	Completeness map[string]string `json:"completeness"`
	NewAds       map[string]string `json:"new_ads"`
}

// Percentage formats part/total as "75.0% (3/4)"
func Percentage(part, total int) string {
	if total == 0 {
		return fmt.Sprintf("0.0%% (%d/%d)", part, total)
	}
	return fmt.Sprintf("%.1f%% (%d/%d)", float64(part)/float64(total)*100, part, total)
}

// CategoryKey names a site category in NewAds
func CategoryKey(site, category string) string {
	return site + " - " + category
}

// Summarize builds the summary of a run. Sites that returned no listings are
// left out.
func Summarize(runID string, at time.Time, stats []persist.SiteStats) Summary {
	s := Summary{
		Timestamp:    at,
		RunID:        runID,
		Completeness: make(map[string]string),
		NewAds:       make(map[string]string),
	}

	for _, site := range stats {
		if site.Total == 0 {
			continue
		}
		s.Completeness[site.Site] = Percentage(site.Complete, site.Total)

		if len(site.Categories) == 0 {
			s.NewAds[site.Site] = Percentage(site.New, site.Total)
			continue
		}
		for name, cat := range site.Categories {
			if cat.Total == 0 {
				continue
			}
			s.NewAds[CategoryKey(site.Site, name)] = Percentage(cat.New, cat.Total)
		}
	}
	return s
}

// Lines renders the summary as sorted "key: value" lines for logging
func (s Summary) Lines() (completeness, newAds []string) {
	return sortedLines(s.Completeness), sortedLines(s.NewAds)
}

func sortedLines(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+m[k])
	}
	return lines
}

// Sink records run summaries
type Sink interface {
	Record(ctx context.Context, s Summary) error
}

// StreamSink publishes summaries as JSON through a publisher
type StreamSink struct {
	pub publisher.Publisher
}

// Ensure StreamSink implements Sink
var _ Sink = (*StreamSink)(nil)

// NewStreamSink creates a sink publishing to pub
func NewStreamSink(pub publisher.Publisher) *StreamSink {
	return &StreamSink{pub: pub}
}

// Record publishes s
func (k *StreamSink) Record(ctx context.Context, s Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	return k.pub.Publish(ctx, data)
}
