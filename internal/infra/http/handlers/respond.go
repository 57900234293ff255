package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/troublesprouter/freight-crm/internal/entity"
	"github.com/troublesprouter/freight-crm/internal/infra/http/middleware"
	"github.com/troublesprouter/freight-crm/internal/logs"
	"github.com/troublesprouter/freight-crm/internal/usecase"
)

func statusFor(code string) int {
	switch code {
	case usecase.CodeNotFound:
		return http.StatusNotFound
	case usecase.CodeCapacityExceeded, usecase.CodeAlreadyClaimed:
		return http.StatusConflict
	case usecase.CodeNotOwned:
		return http.StatusForbidden
	case usecase.CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps use case errors to problem responses. Domain errors are
// expected outcomes; everything else is logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *usecase.CompensationError
	if errors.As(err, &ce) {
		logs.Logger.WithError(err).WithField("reqid", chimw.GetReqID(r.Context())).Error("rollback failed")
		middleware.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error",
			"operation failed and could not be rolled back", map[string]any{"code": "COMPENSATION_FAILED"})
		return
	}

	var de *usecase.DomainError
	if errors.As(err, &de) {
		status := statusFor(de.Code)
		extra := map[string]any{"code": de.Code}
		if de.Code == usecase.CodeCapacityExceeded {
			extra["count"] = de.Count
			extra["cap"] = de.Cap
		}
		middleware.WriteProblem(w, status, http.StatusText(status), de.Message, extra)
		return
	}

	code := "INTERNAL_ERROR"
	var te *usecase.TechnicalError
	if errors.As(err, &te) {
		code = te.Code
	}
	logs.Logger.WithError(err).WithField("reqid", chimw.GetReqID(r.Context())).Error("request failed")
	middleware.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error",
		"unexpected server error (see logs by reqid)", map[string]any{"code": code})
}

// resultLabel is the metrics label for a use case outcome.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var de *usecase.DomainError
	if errors.As(err, &de) {
		return strings.ToLower(de.Code)
	}
	return "error"
}

func sessionOrReject(w http.ResponseWriter, r *http.Request) (entity.Session, bool) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		middleware.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "missing session identity", nil)
	}
	return sess, ok
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body",
			map[string]any{"code": "INVALID_JSON"})
		return false
	}
	return true
}
