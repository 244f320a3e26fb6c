package cmd

import (
	"github.com/nsyszr/relay/pkg/cmd/server"
	"github.com/spf13/cobra"
)

// serveRelayCmd represents the serve relay command
var serveRelayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Serve relay broker instance",
	Run:   server.RunServeRelay(c),
}

func init() {
	serveCmd.AddCommand(serveRelayCmd)
}
