// Package stats aggregates the interaction and rating logs into per-model
// usage, latency and rating figures.
package stats

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/tjfontaine/promptgate/internal/domain"
)

// Summary is the aggregate view served by GET /stats.
type Summary struct {
	ModelUsage     map[string]int     `json:"model_usage" yaml:"model_usage"`
	AvgLatency     map[string]float64 `json:"avg_latency" yaml:"avg_latency"`
	AvgRating      map[string]float64 `json:"avg_rating" yaml:"avg_rating"`
	TotalFallbacks int                `json:"total_fallbacks" yaml:"total_fallbacks"`
	TotalPrompts   int                `json:"total_prompts" yaml:"total_prompts"`
}

// Models returns every model in the summary, sorted.
func (s *Summary) Models() []string {
	seen := make(map[string]struct{}, len(s.ModelUsage)+len(s.AvgRating))
	for m := range s.ModelUsage {
		seen[m] = struct{}{}
	}
	for m := range s.AvgRating {
		seen[m] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Compute aggregates records and ratings.
//
// Latency means are in seconds over records with a recorded latency.
// Rating means use v2 ratings; a v1 rating stored on an interaction counts
// only when no v2 rating exists for the same prompt id. A model with no
// samples reports 0.
func Compute(records []domain.InteractionRecord, ratings []domain.RatingRecord) Summary {
	sum := Summary{
		ModelUsage: make(map[string]int),
		AvgLatency: make(map[string]float64),
		AvgRating:  make(map[string]float64),
	}

	latencies := make(map[string][]float64)
	scores := make(map[string][]float64)
	ratedV2 := make(map[string]struct{}, len(ratings))

	for _, r := range ratings {
		scores[r.Model] = append(scores[r.Model], float64(r.Rating))
		ratedV2[r.PromptID] = struct{}{}
	}

	for i := range records {
		rec := &records[i]
		sum.TotalPrompts++
		sum.ModelUsage[rec.Model]++
		if rec.FallbackUsed() {
			sum.TotalFallbacks++
		}
		if rec.LatencyMs != nil {
			latencies[rec.Model] = append(latencies[rec.Model], float64(*rec.LatencyMs)/1000)
		}
		if rec.Rating != nil {
			if _, ok := ratedV2[rec.PromptID]; !ok {
				scores[rec.Model] = append(scores[rec.Model], float64(*rec.Rating))
			}
		}
	}

	for model := range sum.ModelUsage {
		sum.AvgLatency[model] = mean(latencies[model])
		sum.AvgRating[model] = mean(scores[model])
	}
	for model, s := range scores {
		sum.AvgRating[model] = mean(s)
	}

	return sum
}

// mean returns 0 for an empty sample.
func mean(data []float64) float64 {
	m, err := stats.Mean(stats.LoadRawData(data))
	if err != nil {
		return 0
	}
	return m
}
