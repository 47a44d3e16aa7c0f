package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"tabi-api/domain"
)

// getRole reports the caller's role for a room so the UI can gate write
// affordances. Unauthenticated callers are viewers.
func getRole(deps *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		roomID := c.Param("room")

		principalID := ""
		if principal, err := deps.Auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err == nil {
			principalID = principal.ID
		}

		role, err := resolveRole(ctx, deps.Roles, deps.Logger, principalID, roomID)
		if err != nil {
			deps.Logger.WithFields(log.Fields{"room": roomID, "principal": principalID}).
				Errorf("role resolution failed: %v", err)
			return c.String(http.StatusInternalServerError, "role unavailable")
		}
		return c.JSON(http.StatusOK, roleResponseFor(role))
	}
}

// resolveRole looks up the membership role, self-registering authenticated
// first-time visitors as viewers. Registration is best-effort: its failure
// never blocks the viewer answer.
func resolveRole(ctx context.Context, memberships Memberships, logger *log.Logger, principalID, roomID string) (domain.Role, error) {
	if principalID == "" {
		return domain.RoleViewer, nil
	}
	role, err := memberships.Role(ctx, roomID, principalID)
	switch {
	case err == nil:
		return role, nil
	case errors.Is(err, domain.ErrMembershipNotFound):
		if joinErr := memberships.EnsureMember(ctx, roomID, principalID, domain.RoleViewer); joinErr != nil && logger != nil {
			logger.WithFields(log.Fields{"room": roomID, "principal": principalID}).
				Warnf("viewer self-registration failed: %v", joinErr)
		}
		return domain.RoleViewer, nil
	default:
		return "", err
	}
}

func roleResponseFor(role domain.Role) roleResponse {
	return roleResponse{
		Role:     string(role),
		CanEdit:  domain.CapabilityForRole(role) == domain.CapabilityReadWrite,
		IsOwner:  role == domain.RoleOwner,
		IsViewer: role == domain.RoleViewer,
	}
}

// postJoin registers the authenticated caller as a viewer of the room. The
// upsert is idempotent; repeated joins and races collapse into one row.
func postJoin(deps *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		roomID := c.Param("room")

		principal, err := deps.Auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if err := deps.Roles.EnsureMember(ctx, roomID, principal.ID, domain.RoleViewer); err != nil {
			deps.Logger.WithFields(log.Fields{"room": roomID, "principal": principal.ID}).
				Errorf("join failed: %v", err)
			return c.String(http.StatusInternalServerError, "join unavailable")
		}
		return c.NoContent(http.StatusNoContent)
	}
}
