package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	apperrors "github.com/htverse/apiserver/internal/errors"
	"github.com/htverse/apiserver/internal/policy"
	"github.com/htverse/apiserver/types"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

type contextKey string

const (
	contextUserKey   contextKey = "user"
	contextDetailKey contextKey = "error-detail"
)

func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok && user.ID != ""
}

// actorFromContext returns the authenticated caller, or the anonymous actor.
func actorFromContext(ctx context.Context) policy.Actor {
	user, ok := userFromContext(ctx)
	if !ok {
		return policy.Actor{}
	}
	return policy.Actor{ID: user.ID, Role: user.Role}
}

// ErrorDetail makes error responses carry the underlying cause. It is meant
// for development environments only.
func ErrorDetail(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if enabled {
				r = r.WithContext(context.WithValue(r.Context(), contextDetailKey, true))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Error   string            `json:"error,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

// MessageResponse is the success envelope for payloads under data.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, MessageResponse{Success: true, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

// writeError renders err with the status of its kind. Errors that are not
// *apperrors.Error are reported as internal failures.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal("Server Error", err)
	}
	status := apperrors.HTTPStatus(appErr)

	resp := ErrorResponse{
		Message: appErr.Message,
		Code:    string(appErr.Code),
		Data:    appErr.Metadata,
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	if detail, _ := r.Context().Value(contextDetailKey).(bool); detail && appErr.Cause != nil {
		resp.Error = appErr.Cause.Error()
	}
	writeJSON(w, status, resp)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("Request body is required")
		}
		return apperrors.Validation("Invalid request body").WithMetadata("reason", err.Error())
	}
	return nil
}

func parsePagination(r *http.Request) (page, limit int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, apperrors.Validation("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, apperrors.Validation("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, apperrors.Validation("Failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, apperrors.Validationf("Uploaded file cannot exceed %d MB", limit>>20)
	}
	return data, nil
}
