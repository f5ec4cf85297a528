package entities

import "time"

// AuditKind classifies an audit record.
type AuditKind string

const (
	// AuditAdmissionDecision records the outcome of one Evaluate call.
	// Only the admission evaluator produces records of this kind.
	AuditAdmissionDecision AuditKind = "admission-decision"

	AuditExceptionCreated AuditKind = "exception-created"
	AuditExceptionRevoked AuditKind = "exception-revoked"
	AuditExceptionExpired AuditKind = "exception-expired"
)

// AuditRecord is one immutable entry in the append-only audit trail. Records
// are written by the evaluator, the lifecycle manager, and the sweeper, and
// are never read back on the decision path.
type AuditRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      AuditKind `json:"kind"`

	// Actor is the identity the record concerns: the requester for
	// admission decisions, the creator or revoker for lifecycle events.
	Actor string `json:"actor"`

	// Decision is set for records of kind admission-decision.
	Decision *AdmissionDecision `json:"decision,omitempty"`

	// Correlating identifiers, present where applicable.
	RuleID      string `json:"ruleId,omitempty"`
	ExceptionID string `json:"exceptionId,omitempty"`
	IncidentID  string `json:"incidentId,omitempty"`

	// Reason carries free-form context: revocation reasons, request
	// summaries, sweep notes.
	Reason string `json:"reason,omitempty"`
}
