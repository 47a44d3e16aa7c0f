package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"tabi-api/domain"
)

// postSession resolves the caller's identity and membership into a signed,
// room-scoped session grant and relays the issuer's status and body
// verbatim.
//
// The pipeline degrades instead of rejecting: a missing, malformed, or
// expired credential yields an anonymous read-only grant, and an absent
// membership row defaults to viewer. Only unexpected failures during
// membership lookup or grant signing surface as errors.
func postSession(deps *Deps) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newSessionRequestMetrics(ctx, deps.Logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		roomID := c.QueryParam("room")

		authStart := time.Now()
		principal, authErr := deps.Auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))

		var grant domain.SessionGrant
		if authErr != nil {
			// Absent and invalid credentials share the downgrade path so a
			// stale token never locks a participant out of reading the room.
			if deps.Logger != nil && !errors.Is(authErr, errMissingAuthorization) {
				deps.Logger.WithFields(log.Fields{"room": roomID, "reason": authErr}).
					Debug("credential rejected, issuing anonymous session")
			}
			grant = anonymousGrant(roomID)
			metrics.SetAnonymous(true)
		} else {
			role := domain.RoleViewer
			roleStart := time.Now()
			r, roleErr := deps.Memberships.Role(ctx, roomID, principal.ID)
			metrics.ObserveRole(time.Since(roleStart))
			switch {
			case roleErr == nil:
				role = r
			case errors.Is(roleErr, domain.ErrMembershipNotFound):
				// not a member yet; joining is a separate operation
			default:
				metrics.SetErrorStage("membership")
				deps.Logger.WithFields(log.Fields{"room": roomID, "principal": principal.ID}).
					Errorf("membership lookup failed: %v", roleErr)
				err = c.String(http.StatusInternalServerError, "session unavailable")
				return err
			}
			grant = domain.SessionGrant{
				PrincipalID: principal.ID,
				DisplayName: principal.Name,
				RoomID:      roomID,
				Capability:  domain.CapabilityForRole(role),
			}
		}

		issueStart := time.Now()
		status, body, issueErr := deps.Issuer.Issue(ctx, grant)
		metrics.ObserveIssue(time.Since(issueStart))
		if issueErr != nil {
			metrics.SetErrorStage("issue")
			deps.Logger.WithFields(log.Fields{"room": roomID, "principal": grant.PrincipalID}).
				Errorf("grant issuance failed: %v", issueErr)
			err = c.String(http.StatusInternalServerError, "session unavailable")
			return err
		}
		err = c.Blob(status, echo.MIMEApplicationJSON, body)
		return err
	}
}

func anonymousGrant(roomID string) domain.SessionGrant {
	return domain.SessionGrant{
		PrincipalID: "guest:" + uuid.NewString(),
		DisplayName: "Guest",
		Anonymous:   true,
		RoomID:      roomID,
		Capability:  domain.CapabilityRead,
	}
}
