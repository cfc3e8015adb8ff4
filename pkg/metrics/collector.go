// Package metrics derives operational and quality metrics from the
// audit log and stored entities. The collector is strictly read-only:
// every number is recomputed from the event history on demand.
package metrics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/storage"
)

// histogramBuckets are the upper bounds of the quality score buckets.
var histogramBuckets = []float64{0.2, 0.4, 0.6, 0.8, 1.0}

// aggregateRunLimit caps how many runs one aggregate query considers.
const aggregateRunLimit = 10000

// Collector computes metrics over runs and their audit timelines.
type Collector struct {
	runs        storage.RunRepository
	assessments storage.AssessmentRepository
	audit       storage.AuditRepository
}

// NewCollector creates a metrics collector over the given
// repositories.
func NewCollector(runs storage.RunRepository, assessments storage.AssessmentRepository, audit storage.AuditRepository) *Collector {
	return &Collector{runs: runs, assessments: assessments, audit: audit}
}

// PhaseDurations holds the elapsed seconds between the first
// occurrences of consecutive phase events.
type PhaseDurations struct {
	DiscoverySeconds   float64 `json:"discovery_seconds"`
	AssessmentSeconds  float64 `json:"assessment_seconds"`
	IntegrationSeconds float64 `json:"integration_seconds"`
	ReviewSeconds      float64 `json:"review_seconds"`
	TotalSeconds       float64 `json:"total_seconds"`
}

// QualityStats summarizes a run's assessment scores.
type QualityStats struct {
	Count     int            `json:"count"`
	Average   float64        `json:"average"`
	Min       float64        `json:"min"`
	Max       float64        `json:"max"`
	Histogram map[string]int `json:"histogram"`
}

// RunMetrics is the per-run metrics report.
type RunMetrics struct {
	RunID             string           `json:"run_id"`
	Status            models.RunStatus `json:"status"`
	Phases            PhaseDurations   `json:"phases"`
	SourcesDiscovered int              `json:"sources_discovered"`
	SourcesAssessed   int              `json:"sources_assessed"`
	SourcesApproved   int              `json:"sources_approved"`
	TotalEvents       int              `json:"total_events"`
	ErrorRate         float64          `json:"error_rate"`
	Quality           QualityStats     `json:"quality"`
}

// Run computes the metrics report for a single run.
func (c *Collector) Run(ctx context.Context, runID string) (*RunMetrics, error) {
	run, err := c.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	events, err := c.audit.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load events for run %s: %w", runID, err)
	}
	assessments, err := c.assessments.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load assessments for run %s: %w", runID, err)
	}

	m := &RunMetrics{
		RunID:             runID,
		Status:            run.Status,
		Phases:            phaseDurations(events),
		SourcesDiscovered: run.SourcesDiscovered,
		SourcesAssessed:   run.SourcesAssessed,
		SourcesApproved:   run.SourcesApproved,
		TotalEvents:       len(events),
		ErrorRate:         errorRate(events),
		Quality:           qualityStats(assessments),
	}
	return m, nil
}

// TrendPoint is one daily bucket of the aggregate trend.
type TrendPoint struct {
	Day                string  `json:"day"`
	Runs               int     `json:"runs"`
	SuccessRate        float64 `json:"success_rate"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}

// AggregateMetrics summarizes all runs within a time range.
type AggregateMetrics struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	TotalRuns     int     `json:"total_runs"`
	CompletedRuns int     `json:"completed_runs"`
	FailedRuns    int     `json:"failed_runs"`
	CancelledRuns int     `json:"cancelled_runs"`
	SuccessRate   float64 `json:"success_rate"`

	TotalEvents int     `json:"total_events"`
	ErrorRate   float64 `json:"error_rate"`

	Trend []TrendPoint `json:"trend,omitempty"`

	// Least-squares slopes over the daily buckets: change per day.
	SuccessRateSlope float64 `json:"success_rate_slope"`
	AvgDurationSlope float64 `json:"avg_duration_slope"`
}

// Aggregate computes metrics across all runs created within
// [from, to).
func (c *Collector) Aggregate(ctx context.Context, from, to time.Time) (*AggregateMetrics, error) {
	runs, _, err := c.runs.List(ctx, models.RunFilters{Since: &from, Before: &to, Limit: aggregateRunLimit})
	if err != nil {
		return nil, fmt.Errorf("list runs in range: %w", err)
	}
	events, err := c.audit.ListRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load events in range: %w", err)
	}

	agg := &AggregateMetrics{
		From:        from,
		To:          to,
		TotalRuns:   len(runs),
		TotalEvents: len(events),
		ErrorRate:   errorRate(events),
	}
	for _, run := range runs {
		switch run.Status {
		case models.RunStatusCompleted:
			agg.CompletedRuns++
		case models.RunStatusFailed:
			agg.FailedRuns++
		case models.RunStatusCancelled:
			agg.CancelledRuns++
		}
	}
	if agg.TotalRuns > 0 {
		agg.SuccessRate = float64(agg.CompletedRuns) / float64(agg.TotalRuns)
	}

	agg.Trend = dailyTrend(runs)
	agg.SuccessRateSlope = slope(agg.Trend, func(p TrendPoint) float64 { return p.SuccessRate })
	agg.AvgDurationSlope = slope(agg.Trend, func(p TrendPoint) float64 { return p.AvgDurationSeconds })
	return agg, nil
}

// phaseDurations derives phase boundaries from the first occurrence of
// each phase event. A missing boundary leaves that phase at zero.
func phaseDurations(events []*models.AuditEvent) PhaseDurations {
	first := make(map[string]time.Time)
	for _, e := range events {
		if _, ok := first[e.EventType]; !ok {
			first[e.EventType] = e.Timestamp
		}
	}

	between := func(fromType, toType string) float64 {
		from, okFrom := first[fromType]
		to, okTo := first[toType]
		if !okFrom || !okTo || to.Before(from) {
			return 0
		}
		return to.Sub(from).Seconds()
	}

	var d PhaseDurations
	d.DiscoverySeconds = between(models.EventResearchStart, models.EventContentDiscovery)
	d.AssessmentSeconds = between(models.EventContentDiscovery, models.EventQualityAssessment)
	d.IntegrationSeconds = between(models.EventQualityAssessment, models.EventIntegrationProposal)
	d.ReviewSeconds = between(models.EventIntegrationProposal, models.EventReviewQueue)
	d.TotalSeconds = between(models.EventResearchStart, models.EventResearchComplete)
	return d
}

func errorRate(events []*models.AuditEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	errorCount := 0
	for _, e := range events {
		if e.Level == models.LevelError || e.Level == models.LevelCritical {
			errorCount++
		}
	}
	return float64(errorCount) / float64(len(events))
}

func qualityStats(assessments []*models.QualityAssessment) QualityStats {
	stats := QualityStats{Histogram: make(map[string]int)}
	if len(assessments) == 0 {
		return stats
	}

	stats.Count = len(assessments)
	stats.Min = math.Inf(1)
	stats.Max = math.Inf(-1)
	sum := 0.0
	for _, a := range assessments {
		sum += a.Overall
		stats.Min = math.Min(stats.Min, a.Overall)
		stats.Max = math.Max(stats.Max, a.Overall)
		stats.Histogram[bucketLabel(a.Overall)]++
	}
	stats.Average = sum / float64(stats.Count)
	return stats
}

func bucketLabel(score float64) string {
	lower := 0.0
	for _, upper := range histogramBuckets {
		if score <= upper {
			return fmt.Sprintf("%.1f-%.1f", lower, upper)
		}
		lower = upper
	}
	return fmt.Sprintf("%.1f-1.0", lower)
}

// dailyTrend buckets runs by creation day and computes per-day success
// rate and average duration.
func dailyTrend(runs []*models.ResearchRun) []TrendPoint {
	type bucket struct {
		runs      int
		completed int
		durations []float64
	}
	buckets := make(map[string]*bucket)
	for _, run := range runs {
		day := run.CreatedAt.UTC().Format("2006-01-02")
		b := buckets[day]
		if b == nil {
			b = &bucket{}
			buckets[day] = b
		}
		b.runs++
		if run.Status == models.RunStatusCompleted {
			b.completed++
		}
		if run.StartedAt != nil && run.CompletedAt != nil {
			b.durations = append(b.durations, run.CompletedAt.Sub(*run.StartedAt).Seconds())
		}
	}

	days := make([]string, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Strings(days)

	points := make([]TrendPoint, 0, len(days))
	for _, day := range days {
		b := buckets[day]
		p := TrendPoint{Day: day, Runs: b.runs}
		p.SuccessRate = float64(b.completed) / float64(b.runs)
		if len(b.durations) > 0 {
			sum := 0.0
			for _, d := range b.durations {
				sum += d
			}
			p.AvgDurationSeconds = sum / float64(len(b.durations))
		}
		points = append(points, p)
	}
	return points
}

// slope is the simple least-squares slope of the series y over bucket
// index x. Fewer than two points yields zero.
func slope(points []TrendPoint, value func(TrendPoint) float64) float64 {
	n := float64(len(points))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range points {
		x := float64(i)
		y := value(p)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
