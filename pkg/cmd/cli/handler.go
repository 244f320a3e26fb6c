package cli

import "github.com/nsyszr/relay/config"

// Handler bundles the handlers of the non-serving commands.
type Handler struct {
	Migration *MigrateHandler
}

func NewHandler(c *config.Config) *Handler {
	return &Handler{
		Migration: newMigrateHandler(c),
	}
}
