package models

// RunStatus is the lifecycle state of a research run.
type RunStatus string

// Research run statuses.
const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
// A run never leaves a terminal state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// SourceType classifies where a content source was discovered.
type SourceType string

// Content source types.
const (
	SourceTypeWeb      SourceType = "web"
	SourceTypeAcademic SourceType = "academic"
	SourceTypeNews     SourceType = "news"
)

// ProposalStatus is the lifecycle state of an integration proposal.
type ProposalStatus string

// Integration proposal statuses.
const (
	ProposalStatusPendingReview ProposalStatus = "pending_review"
	ProposalStatusApproved      ProposalStatus = "approved"
	ProposalStatusRejected      ProposalStatus = "rejected"
	ProposalStatusImplemented   ProposalStatus = "implemented"
)

// IntegrationStrategy describes how deeply a source should be merged
// into the knowledge graph.
type IntegrationStrategy string

// Integration strategies, from shallowest to deepest.
const (
	StrategyBasic         IntegrationStrategy = "basic"
	StrategyStandard      IntegrationStrategy = "standard"
	StrategyDeep          IntegrationStrategy = "deep"
	StrategyComprehensive IntegrationStrategy = "comprehensive"
)

// EffortLevel is the estimated effort of implementing a proposal.
type EffortLevel string

// Effort levels.
const (
	EffortLow    EffortLevel = "low"
	EffortMedium EffortLevel = "medium"
	EffortHigh   EffortLevel = "high"
)

// ReviewStatus is the state of a review queue entry.
type ReviewStatus string

// Review queue entry statuses.
const (
	ReviewStatusPending   ReviewStatus = "pending"
	ReviewStatusAssigned  ReviewStatus = "assigned"
	ReviewStatusApproved  ReviewStatus = "approved"
	ReviewStatusRejected  ReviewStatus = "rejected"
	ReviewStatusEscalated ReviewStatus = "escalated"
)

// ReviewDecision is a reviewer's verdict on an assigned entry.
type ReviewDecision string

// Review decisions.
const (
	DecisionApprove  ReviewDecision = "approve"
	DecisionReject   ReviewDecision = "reject"
	DecisionEscalate ReviewDecision = "escalate"
)

// ConnectionKind classifies a suggested connection by similarity band.
type ConnectionKind string

// Connection kinds, strongest first.
const (
	ConnectionDirect     ConnectionKind = "direct"
	ConnectionThematic   ConnectionKind = "thematic"
	ConnectionContextual ConnectionKind = "contextual"
	ConnectionLoose      ConnectionKind = "loose"
)

// EventLevel is the severity of an audit event.
type EventLevel string

// Audit event levels.
const (
	LevelInfo     EventLevel = "info"
	LevelWarning  EventLevel = "warning"
	LevelError    EventLevel = "error"
	LevelCritical EventLevel = "critical"
)
