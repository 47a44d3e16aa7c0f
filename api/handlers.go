package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Deps bundles the collaborators the handlers depend on.
type Deps struct {
	Boards BoardStore
	// Memberships serves session issuance and must reflect membership no
	// older than the request; Roles may answer from a short-lived cache.
	Memberships Memberships
	Roles       Memberships
	Auth        Authenticator
	Issuer      SessionIssuer
	Deduper     Deduper
	Publisher   Publisher
	Logger      *log.Logger
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, deps *Deps) {
	e.POST("/api/session", postSession(deps))
	e.GET("/api/rooms/:room/role", getRole(deps))
	e.POST("/api/rooms/:room/join", postJoin(deps))
	e.GET("/api/rooms/:room/board", getBoard(deps))
	e.POST("/api/rooms/:room/mutations", postMutations(deps), GzipRequestMiddleware())
	e.GET("/healthz", healthz())

	initBroadcaster(deps.Publisher, deps.Logger)
}

// getBoard returns the room's current board snapshot for initial render;
// clients follow the broadcast stream for everything after.
func getBoard(deps *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		roomID := c.Param("room")

		b, err := deps.Boards.Fetch(ctx, roomID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "board unavailable")
		}
		return c.JSON(http.StatusOK, b)
	}
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}
