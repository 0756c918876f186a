package pact

import (
	"encoding/json"
	"errors"
	"net/http"

	"pactline-backend/core/pact"
)

// JSON writes a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes a JSON error envelope.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"error": msg})
}

// violationStatus maps a categorized guard rejection onto an HTTP status.
func violationStatus(err error) int {
	var re *pact.RuleError
	if !errors.As(err, &re) {
		return http.StatusInternalServerError
	}
	switch re.Violation {
	case pact.ViolationRole:
		return http.StatusForbidden
	case pact.ViolationState, pact.ViolationTemporal:
		return http.StatusConflict
	case pact.ViolationFunding:
		return http.StatusPaymentRequired
	default:
		return http.StatusBadRequest
	}
}

// fail translates ledger errors for HTTP callers.
func fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pact.ErrPactNotFound),
		errors.Is(err, pact.ErrVerificationNotFound),
		errors.Is(err, pact.ErrAmendmentNotFound):
		Error(w, http.StatusNotFound, err.Error())
	default:
		Error(w, violationStatus(err), err.Error())
	}
}
