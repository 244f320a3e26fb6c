package api

import (
	"net/http"

	"github.com/labstack/echo"
	"github.com/nsyszr/relay/pkg/api/resource"
	log "github.com/sirupsen/logrus"
)

// handleSignup fans a signup notification out to every open relay
// connection.
func (h *Handler) handleSignup(c echo.Context) error {
	r := &resource.SignupResource{}
	if err := c.Bind(r); err != nil {
		return c.JSON(http.StatusBadRequest, resource.NewError(err))
	}

	if err := resource.ValidateSignup(r); err != nil {
		return c.JSON(http.StatusBadRequest, resource.NewError(err))
	}

	n := h.broker.BroadcastSignup(r.FullName, r.Department)
	log.WithFields(log.Fields{
		"department": r.Department,
		"recipients": n,
	}).Info("api broadcast signup")

	return c.JSON(http.StatusOK, resource.NewSignupResult(n))
}
