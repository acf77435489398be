/*
Package handler provides HTTP handler functions for session token issuance.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
	"chatrelay/internal/pkg/req"
	"chatrelay/internal/pkg/resp"
)

type TokenInput struct {
	Username string `json:"username"`
}

// HandleIssueToken mints a session token for a display name. Identities are
// not accounts: any client may claim any free-form name, and a later claim of
// the same name supersedes the earlier one at the presence level.
func HandleIssueToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input TokenInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !randx.IsValidUsername(input.Username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		payload := &jwt.Payload{
			ID:       uuid.New().String(),
			Username: input.Username,
			UserType: "guest",
		}

		tokenString, err := jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.SessionExpiration)
		if err != nil {
			logx.Error(err, "failed to generate session token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token": tokenString,
			"user": map[string]any{
				"id":       payload.ID,
				"username": input.Username,
				"userType": payload.UserType,
			},
			"expiresAt": time.Now().Add(jwt.SessionExpiration).Format(time.RFC3339),
		})
	}
}
