package ports

import "github.com/breakglass-dev/breakglass/domain/entities"

// DenialHandler is invoked by the evaluator whenever a request is denied.
// It decouples enforcement from reporting: handlers may log, count, or page,
// but they cannot influence the decision.
type DenialHandler interface {
	OnDenial(rule string, req *entities.AdmissionRequest, message string)
}
