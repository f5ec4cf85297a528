package admission

import (
	"log/slog"

	"github.com/breakglass-dev/breakglass/domain/entities"
)

// SlogDenialHandler logs denials through slog.
type SlogDenialHandler struct {
	Logger *slog.Logger
}

// OnDenial implements ports.DenialHandler.
func (h *SlogDenialHandler) OnDenial(rule string, req *entities.AdmissionRequest, message string) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("admission denied",
		"rule", rule,
		"user", req.User,
		"namespace", req.Namespace,
		"operation", req.Operation,
		"resource", req.Resource,
		"message", message,
	)
}

// NopDenialHandler discards denials. Useful in tests.
type NopDenialHandler struct{}

// OnDenial implements ports.DenialHandler.
func (NopDenialHandler) OnDenial(string, *entities.AdmissionRequest, string) {}
