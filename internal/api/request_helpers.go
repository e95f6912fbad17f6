package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/taskboard/internal/api/shared"
	"github.com/phrazzld/taskboard/internal/domain"
	"github.com/phrazzld/taskboard/internal/store"
)

// getPathID extracts a positive integer id from the URL path parameters.
//
// Returns:
//   - (id, nil): The parsed id if valid
//   - (0, *shared.RequestError): If the parameter is missing or not an integer
//   - (0, *domain.ValidationError): If the integer is zero or negative
func getPathID(r *http.Request, paramName string) (int64, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return 0, shared.NewRequestError(paramName, "is required")
	}

	id, err := strconv.ParseInt(pathParam, 10, 64)
	if err != nil {
		return 0, shared.NewRequestError(paramName, "must be an integer")
	}
	if id <= 0 {
		return 0, domain.NewValidationError(paramName, "must be a positive integer", domain.ErrInvalidID)
	}
	return id, nil
}

// statusQuery returns the status query parameter. An absent or empty value
// means no filter.
func statusQuery(r *http.Request) domain.Optional[string] {
	status := r.URL.Query().Get("status")
	if status == "" {
		return domain.None[string]()
	}
	return domain.Some(status)
}

// parseListQuery reads status, skip and limit from the query string.
// skip defaults to 0 and must be >= 0; limit defaults to defaultLimit, must
// be > 0 and is capped at maxLimit. Bound violations are *shared.RequestError.
func parseListQuery(r *http.Request, defaultLimit, maxLimit int) (store.TaskFilter, error) {
	query := r.URL.Query()
	filter := store.TaskFilter{
		Status: statusQuery(r),
		Limit:  defaultLimit,
	}

	if raw := query.Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil {
			return store.TaskFilter{}, shared.NewRequestError("skip", "must be an integer")
		}
		if skip < 0 {
			return store.TaskFilter{}, shared.NewRequestError("skip", "must be greater than or equal to 0")
		}
		filter.Skip = skip
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return store.TaskFilter{}, shared.NewRequestError("limit", "must be an integer")
		}
		if limit <= 0 {
			return store.TaskFilter{}, shared.NewRequestError("limit", "must be greater than 0")
		}
		if maxLimit > 0 && limit > maxLimit {
			limit = maxLimit
		}
		filter.Limit = limit
	}

	return filter, nil
}
