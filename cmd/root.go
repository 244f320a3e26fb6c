package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/nsyszr/relay/config"
	"github.com/nsyszr/relay/pkg/cmd/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var c = new(config.Config)
var cmdHandler = cli.NewHandler(c)

var (
	Version   = "dev-master"
	BuildTime = "undefined"
	GitHash   = "undefined"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "relayd",
	Short: "Relay broker between devices and their users' frontends",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	},
}

// Execute runs relayd and is called by main.main()
func Execute() {
	c.BuildTime = BuildTime
	c.BuildVersion = Version
	c.BuildHash = GitHash

	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.relayd.yml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// enable ability to specify config file via flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal(fmt.Sprintf("Could not locate home directory because %s.", err))
		}
		if _, err := os.Stat(filepath.Join(home, ".relayd.yml")); err != nil {
			_, _ = os.Create(filepath.Join(home, ".relayd.yml"))
		}

		viper.SetConfigType("yaml")
		viper.SetConfigName(".relayd") // name of config file (without extension)
		viper.AddConfigPath(home)      // adding home directory as first search path
	}
	viper.AutomaticEnv() // read in environment variables that match

	// Fetch settings
	viper.BindEnv("PORT")
	viper.SetDefault("PORT", 4001)

	viper.BindEnv("HOST")
	viper.SetDefault("HOST", "")

	// An empty DATABASE_URL keeps the event log in memory.
	viper.BindEnv("DATABASE_URL")
	viper.SetDefault("DATABASE_URL", "")

	// An empty NATS_URL disables event publishing.
	viper.BindEnv("NATS_URL")
	viper.SetDefault("NATS_URL", "")

	viper.BindEnv("NATS_SUBJECT")
	viper.SetDefault("NATS_SUBJECT", "relay.v1")

	viper.BindEnv("DEVICE_TIMEOUT")
	viper.SetDefault("DEVICE_TIMEOUT", 15)

	viper.BindEnv("DEVICE_SWEEP_INTERVAL")
	viper.SetDefault("DEVICE_SWEEP_INTERVAL", 5)

	viper.BindEnv("FRONTEND_PING_INTERVAL")
	viper.SetDefault("FRONTEND_PING_INTERVAL", 15)

	viper.BindEnv("OUTBOX_SIZE")
	viper.SetDefault("OUTBOX_SIZE", 100)

	// Bytes, larger inbound messages close the connection.
	viper.BindEnv("MAX_MESSAGE_SIZE")
	viper.SetDefault("MAX_MESSAGE_SIZE", 65536)

	viper.BindEnv("MAX_EVENTS")
	viper.SetDefault("MAX_EVENTS", 1000)

	viper.BindEnv("LOG_LEVEL")
	viper.SetDefault("LOG_LEVEL", "info")

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf(`Config file not found because "%s"`, err)
		fmt.Println("")
	}

	if err := viper.Unmarshal(c); err != nil {
		log.Fatal(fmt.Sprintf("Could not read config because %s.", err))
	}
}
