package handlers

import (
	"errors"
	"net/http"

	"device-entitlement-backend/pkg/entitlement"
	"device-entitlement-backend/pkg/utils"
)

// writeEngineError translates the entitlement error taxonomy into an HTTP
// error response. NotFound and Forbidden are deliberately kept distinct so
// "you are not a member" never reads as "you lack permission".
func writeEngineError(w http.ResponseWriter, err error) {
	var (
		validation *entitlement.ValidationError
		notFound   *entitlement.NotFoundError
		forbidden  *entitlement.ForbiddenError
		conflict   *entitlement.ConflictError
		limit      *entitlement.LimitError
		upstream   *entitlement.UpstreamError
	)

	switch {
	case errors.As(err, &validation):
		utils.WriteValidationErrorResponse(w, validation.Error())
	case errors.As(err, &notFound):
		utils.WriteNotFoundResponse(w, notFound.Error())
	case errors.As(err, &forbidden):
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, "FORBIDDEN", forbidden.Reason,
			map[string]string{"rule": forbidden.Rule})
	case errors.As(err, &conflict):
		utils.WriteConflictResponse(w, conflict.Error())
	case errors.As(err, &limit):
		// Limit payload carries the counts so clients can render an
		// accurate personal vs shared-quota message.
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, "LIMIT_REACHED", limit.Error(),
			map[string]interface{}{
				"current":   limit.Current,
				"max":       limit.Max,
				"is_shared": limit.Shared,
			})
	case errors.As(err, &upstream):
		utils.WriteUpstreamErrorResponse(w, upstream.Error())
	default:
		utils.WriteInternalServerErrorResponse(w, err.Error())
	}
}
