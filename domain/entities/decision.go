package entities

// Effect is the outcome of an admission evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// AdmissionDecision is the result of evaluating one admission request. Every
// evaluation produces exactly one decision, paired one-to-one with an audit
// record of kind admission-decision.
type AdmissionDecision struct {
	Effect Effect `json:"effect"`

	// RuleID names the rule that produced a denial, or the rule an
	// exception suspended to produce an allow. Empty for default allows.
	RuleID string `json:"ruleId,omitempty"`

	// ExceptionID names the exception an allow is attributed to, when one
	// applied.
	ExceptionID string `json:"exceptionId,omitempty"`

	Message string `json:"message"`
}

// Allowed reports whether the decision admits the request.
func (d *AdmissionDecision) Allowed() bool {
	return d.Effect == EffectAllow
}
