package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo"
	"github.com/nsyszr/relay/pkg/api/resource"
	"github.com/nsyszr/relay/pkg/model"
	"github.com/nsyszr/relay/pkg/storage"
)

func (h *Handler) handleFetchEvents(c echo.Context) error {
	var (
		m   map[int32]model.Event
		err error
	)

	if sourceID := c.QueryParam("source_id"); sourceID != "" {
		m, err = h.store.Events().FindBySourceID(sourceID)
	} else {
		m, err = h.store.Events().FetchAll()
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, resource.NewError(err))
	}

	return c.JSON(http.StatusOK, resource.NewEventList(m))
}

func (h *Handler) handleGetEventByID(c echo.Context) error {
	idParam := c.Param("id")
	id, err := strconv.ParseInt(idParam, 10, 32)
	if err != nil && errors.Is(err, strconv.ErrRange) {
		// No event can carry an ID outside of int32.
		return c.JSON(http.StatusNotFound, resource.NewError(storage.ErrNotFound))
	} else if err != nil {
		return c.JSON(http.StatusBadRequest, resource.NewError(err))
	}

	m, err := h.store.Events().FindByID(int32(id))
	if err != nil && err == storage.ErrNotFound {
		return c.JSON(http.StatusNotFound, resource.NewError(err))
	} else if err != nil {
		return c.JSON(http.StatusInternalServerError, resource.NewError(err))
	}

	return c.JSON(http.StatusOK, resource.NewEvent(m))
}
