package api

import (
	"net/http"

	"github.com/labstack/echo"
	"github.com/nsyszr/relay/pkg/api/resource"
	"github.com/nsyszr/relay/pkg/storage"
)

func (h *Handler) handleFetchDevices(c echo.Context) error {
	return c.JSON(http.StatusOK, resource.NewDeviceList(h.broker.Devices()))
}

func (h *Handler) handleGetDeviceByID(c echo.Context) error {
	m, ok := h.broker.Device(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, resource.NewError(storage.ErrNotFound))
	}

	return c.JSON(http.StatusOK, resource.NewDevice(&m))
}
