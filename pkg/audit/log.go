// Package audit provides the append-only, event-sourced timeline of a
// research run. Writes are durable before the orchestrator
// acknowledges the step that produced them; the ordered sequence of a
// run's events is its canonical history.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/storage"
)

// writeTimeout bounds audit writes. Appends use a detached context so
// run cancellation cannot lose terminal events.
const writeTimeout = 5 * time.Second

// Logger appends audit events and answers timeline queries.
type Logger struct {
	repo storage.AuditRepository
	now  func() time.Time
}

// NewLogger creates an audit logger over the given repository.
func NewLogger(repo storage.AuditRepository) *Logger {
	return &Logger{repo: repo, now: time.Now}
}

// Entry describes an event to append. Level defaults to info.
type Entry struct {
	RunID           string
	EventType       string
	Level           models.EventLevel
	Payload         map[string]any
	ContentSourceID string
	ReviewEntryID   string
}

// Append durably writes one audit event. The write uses a detached
// context with its own timeout: a cancelled run must still record its
// terminal events.
func (l *Logger) Append(ctx context.Context, entry Entry) error {
	if entry.RunID == "" {
		return fmt.Errorf("audit append: run id required")
	}
	if entry.EventType == "" {
		return fmt.Errorf("audit append: event type required")
	}
	level := entry.Level
	if level == "" {
		level = models.LevelInfo
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	event := &models.AuditEvent{
		ID:              uuid.New().String(),
		ResearchRunID:   entry.RunID,
		EventType:       entry.EventType,
		Level:           level,
		Timestamp:       l.now(),
		Payload:         entry.Payload,
		ContentSourceID: entry.ContentSourceID,
		ReviewEntryID:   entry.ReviewEntryID,
	}
	if err := l.repo.Append(writeCtx, event); err != nil {
		return fmt.Errorf("append audit event %s: %w", entry.EventType, err)
	}
	return nil
}

// Event materializes an entry as a storable audit event without
// writing it. Callers use it when the event must commit in the same
// transaction as another mutation, such as the terminal status change
// of a run; standalone writes go through Append.
func (l *Logger) Event(entry Entry) *models.AuditEvent {
	level := entry.Level
	if level == "" {
		level = models.LevelInfo
	}
	return &models.AuditEvent{
		ID:              uuid.New().String(),
		ResearchRunID:   entry.RunID,
		EventType:       entry.EventType,
		Level:           level,
		Timestamp:       l.now(),
		Payload:         entry.Payload,
		ContentSourceID: entry.ContentSourceID,
		ReviewEntryID:   entry.ReviewEntryID,
	}
}

// Info appends an info-level event, logging (not propagating) append
// failures. Use Append directly where durability must gate progress.
func (l *Logger) Info(ctx context.Context, runID, eventType string, payload map[string]any) {
	l.emit(ctx, runID, eventType, models.LevelInfo, payload)
}

// Warning appends a warning-level event.
func (l *Logger) Warning(ctx context.Context, runID, eventType string, payload map[string]any) {
	l.emit(ctx, runID, eventType, models.LevelWarning, payload)
}

// Error appends an error-level event.
func (l *Logger) Error(ctx context.Context, runID, eventType string, payload map[string]any) {
	l.emit(ctx, runID, eventType, models.LevelError, payload)
}

// Critical appends a critical-level event.
func (l *Logger) Critical(ctx context.Context, runID, eventType string, payload map[string]any) {
	l.emit(ctx, runID, eventType, models.LevelCritical, payload)
}

func (l *Logger) emit(ctx context.Context, runID, eventType string, level models.EventLevel, payload map[string]any) {
	if err := l.Append(ctx, Entry{RunID: runID, EventType: eventType, Level: level, Payload: payload}); err != nil {
		slog.Error("Audit append failed", "run_id", runID, "event_type", eventType, "error", err)
	}
}

// Timeline returns the run's events ordered by timestamp.
func (l *Logger) Timeline(ctx context.Context, runID string) ([]*models.AuditEvent, error) {
	events, err := l.repo.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load timeline for run %s: %w", runID, err)
	}
	return events, nil
}

// Statistics summarizes a run's events by type and level.
type Statistics struct {
	RunID       string         `json:"run_id"`
	TotalEvents int            `json:"total_events"`
	ByType      map[string]int `json:"by_type"`
	ByLevel     map[string]int `json:"by_level"`
}

// Statistics computes event counts for the run.
func (l *Logger) Statistics(ctx context.Context, runID string) (*Statistics, error) {
	events, err := l.repo.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load events for run %s: %w", runID, err)
	}

	stats := &Statistics{
		RunID:   runID,
		ByType:  make(map[string]int),
		ByLevel: make(map[string]int),
	}
	for _, e := range events {
		stats.TotalEvents++
		stats.ByType[e.EventType]++
		stats.ByLevel[string(e.Level)]++
	}
	return stats, nil
}

// Report is a human-oriented summary of a run's timeline.
type Report struct {
	RunID           string               `json:"run_id"`
	TotalEvents     int                  `json:"total_events"`
	ErrorRate       float64              `json:"error_rate"`
	WarningRate     float64              `json:"warning_rate"`
	DurationSeconds float64              `json:"duration_seconds"`
	FirstEventAt    *time.Time           `json:"first_event_at,omitempty"`
	LastEventAt     *time.Time           `json:"last_event_at,omitempty"`
	RecentCritical  []*models.AuditEvent `json:"recent_critical,omitempty"`
	Statistics      *Statistics          `json:"statistics"`
}

// reportCriticalLimit caps the critical events included in a report.
const reportCriticalLimit = 5

// Report builds the run's summary report.
func (l *Logger) Report(ctx context.Context, runID string) (*Report, error) {
	events, err := l.repo.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load events for run %s: %w", runID, err)
	}

	report := &Report{
		RunID: runID,
		Statistics: &Statistics{
			RunID:   runID,
			ByType:  make(map[string]int),
			ByLevel: make(map[string]int),
		},
	}

	var errorCount, warningCount int
	var critical []*models.AuditEvent
	for _, e := range events {
		report.TotalEvents++
		report.Statistics.TotalEvents++
		report.Statistics.ByType[e.EventType]++
		report.Statistics.ByLevel[string(e.Level)]++
		switch e.Level {
		case models.LevelError:
			errorCount++
		case models.LevelWarning:
			warningCount++
		case models.LevelCritical:
			errorCount++
			critical = append(critical, e)
		}
	}

	if report.TotalEvents > 0 {
		first := events[0].Timestamp
		last := events[len(events)-1].Timestamp
		report.FirstEventAt = &first
		report.LastEventAt = &last
		report.DurationSeconds = last.Sub(first).Seconds()
		report.ErrorRate = float64(errorCount) / float64(report.TotalEvents)
		report.WarningRate = float64(warningCount) / float64(report.TotalEvents)
	}
	if len(critical) > reportCriticalLimit {
		critical = critical[len(critical)-reportCriticalLimit:]
	}
	report.RecentCritical = critical
	return report, nil
}
