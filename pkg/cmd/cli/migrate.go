package cli

import (
	"fmt"
	"os"

	colorable "github.com/mattn/go-colorable"
	"github.com/nsyszr/relay/config"
	"github.com/nsyszr/relay/pkg/storage/postgres"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// MigrationsDir holds the sql-migrate files of the event store.
const MigrationsDir = "db/migrations"

type MigrateHandler struct {
	c *config.Config
}

func newMigrateHandler(c *config.Config) *MigrateHandler {
	return &MigrateHandler{c: c}
}

// getDatabaseURL returns the URL passed at position or the configured
// DATABASE_URL.
func (h *MigrateHandler) getDatabaseURL(cmd *cobra.Command, args []string, position int) (url string) {
	if len(args) > position {
		url = args[position]
	} else if h.c != nil {
		url = h.c.DatabaseURL
	}

	if url == "" {
		fmt.Println(cmd.UsageString())
	}
	return
}

func (h *MigrateHandler) MigrateSQL(cmd *cobra.Command, args []string) {
	url := h.getDatabaseURL(cmd, args, 0)
	if url == "" {
		os.Exit(2) // Return missing keyword or command
	}

	log.SetLevel(log.DebugLevel)
	log.SetFormatter(&log.TextFormatter{
		ForceColors: true,
	})
	log.SetOutput(colorable.NewColorableStdout())

	direction := migrate.Up
	if down, _ := cmd.Flags().GetBool("down"); down {
		direction = migrate.Down
	}

	log.Info("Applying SQL migration...")

	db, err := postgres.Open(url)
	if err != nil {
		log.Errorf("An error occurred while connecting to SQL: %s", err)
		os.Exit(1)
	}
	defer db.Close()

	migrations := &migrate.FileMigrationSource{
		Dir: MigrationsDir,
	}

	n, err := migrate.Exec(db.DB, "postgres", migrations, direction)
	if err != nil {
		log.Errorf("An error occurred while running the migrations: %s", err)
		os.Exit(1)
	}
	log.Infof("Migration successful! Applied a total of %d migrations.", n)
}
