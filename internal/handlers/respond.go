package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/platform/auth"
	"github.com/instrugate/api/internal/platform/httpx"
	"github.com/instrugate/api/internal/platform/pagination"
	"github.com/instrugate/api/internal/repositories"
	"github.com/instrugate/api/internal/services"
)

const defaultMaxBodySize = 64 * 1024

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func decodeJSONBody(r *http.Request, limit int64, target any) error {
	data, err := readLimitedBody(r, limit)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

// requireIdentity pulls the verified identity out of the request context.
// RequireAuth middleware guarantees it; a missing identity is still answered
// with 401 rather than a panic.
func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func actorFromIdentity(identity *auth.Identity) services.Actor {
	return services.Actor{UserID: identity.UID, Role: domain.Role(identity.Role)}
}

// parsePagination leaves PageSize zero when absent so the storage layer can
// apply its own default.
func parsePagination(r *http.Request) (domain.Pagination, error) {
	params, err := pagination.FromRequest(r, pagination.Options{MaxPageSize: pagination.DefaultMaxPageSize})
	if err != nil {
		return domain.Pagination{}, err
	}
	return domain.Pagination{PageSize: params.PageSize, PageToken: params.PageToken}, nil
}

func writePaginationError(ctx context.Context, w http.ResponseWriter, err error) {
	httpx.WriteError(ctx, w, httpx.NewError("invalid_pagination", err.Error(), http.StatusBadRequest))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// writeRepoError maps repository classification onto HTTP statuses.
func writeRepoError(ctx context.Context, w http.ResponseWriter, err error) {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
			return
		case repoErr.IsConflict():
			httpx.WriteError(ctx, w, httpx.NewError("conflict", repoErr.Error(), http.StatusConflict))
			return
		case repoErr.IsUnavailable():
			httpx.WriteError(ctx, w, httpx.NewError("datastore_unavailable", "datastore temporarily unavailable", http.StatusServiceUnavailable))
			return
		}
	}
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
}
