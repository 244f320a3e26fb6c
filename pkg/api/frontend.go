package api

import (
	"net/http"

	"github.com/labstack/echo"
	"github.com/nsyszr/relay/pkg/api/resource"
	"github.com/nsyszr/relay/pkg/storage"
)

func (h *Handler) handleFetchFrontends(c echo.Context) error {
	return c.JSON(http.StatusOK, resource.NewFrontendList(h.broker.Frontends()))
}

func (h *Handler) handleGetFrontendByID(c echo.Context) error {
	m, ok := h.broker.Frontend(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, resource.NewError(storage.ErrNotFound))
	}

	return c.JSON(http.StatusOK, resource.NewFrontend(&m))
}
