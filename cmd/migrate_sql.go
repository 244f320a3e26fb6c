package cmd

import (
	"github.com/spf13/cobra"
)

// migrateSQLCmd represents the migrate sql command
var migrateSQLCmd = &cobra.Command{
	Use:   "sql [<database-url>]",
	Short: "Create SQL schemas and apply migration plans",
	Long: `Applies the event store migrations to the PostgreSQL database at
<database-url>. Without an argument DATABASE_URL is used.`,
	Run: cmdHandler.Migration.MigrateSQL,
}

func init() {
	migrateCmd.AddCommand(migrateSQLCmd)

	migrateSQLCmd.Flags().Bool("down", false, "roll back the migrations instead of applying them")
}
