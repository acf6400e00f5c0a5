package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/boardguard"
	"github.com/MrEthical07/boardguard/jwt"
)

// ErrorBody is the JSON error response written by [WriteError].
type ErrorBody struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

// StatusFor maps an engine or token error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, boardguard.ErrActorMissing),
		errors.Is(err, jwt.ErrInvalidToken),
		errors.Is(err, jwt.ErrMissingSubject):
		return http.StatusUnauthorized
	case errors.Is(err, boardguard.ErrNotAMember),
		errors.Is(err, boardguard.ErrNoRolesConfigured),
		errors.Is(err, boardguard.ErrInsufficientPermissions):
		return http.StatusForbidden
	case errors.Is(err, boardguard.ErrResourceNotFound),
		errors.Is(err, boardguard.ErrMemberNotFound),
		errors.Is(err, boardguard.ErrRoleNotFound),
		errors.Is(err, boardguard.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, boardguard.ErrConcurrentModification),
		errors.Is(err, boardguard.ErrAlreadyMember),
		errors.Is(err, boardguard.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, boardguard.ErrResourceArgumentMissing),
		errors.Is(err, boardguard.ErrUnknownOperation),
		errors.Is(err, boardguard.ErrInvalidInput),
		errors.Is(err, boardguard.ErrInvalidPermissionMask),
		errors.Is(err, boardguard.ErrPermissionOverlap),
		errors.Is(err, boardguard.ErrUnknownFlag),
		errors.Is(err, boardguard.ErrRoleNotInResource),
		errors.Is(err, boardguard.ErrTargetPositionNotFound),
		errors.Is(err, boardguard.ErrSingleItemCollection),
		errors.Is(err, boardguard.ErrNoOtherSteps),
		errors.Is(err, boardguard.ErrCannotDisplacePinnedStep),
		errors.Is(err, boardguard.ErrCollectionFull):
		return http.StatusBadRequest
	case errors.Is(err, boardguard.ErrStoreUnavailable),
		errors.Is(err, boardguard.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON body with the status from [StatusFor].
// Token failures and internal errors are reported without detail.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	body := ErrorBody{Error: err.Error()}
	switch status {
	case http.StatusUnauthorized:
		body.Error = "unauthorized"
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		body.Error = http.StatusText(status)
	}

	var insufficient *boardguard.InsufficientPermissionsError
	if errors.As(err, &insufficient) {
		body.Error = boardguard.ErrInsufficientPermissions.Error()
		body.Missing = insufficient.Missing
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
