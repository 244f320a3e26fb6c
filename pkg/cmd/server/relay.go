package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/relay/config"
	"github.com/nsyszr/relay/pkg/api"
	"github.com/nsyszr/relay/pkg/events/natsio"
	"github.com/nsyszr/relay/pkg/relay"
	"github.com/nsyszr/relay/pkg/storage"
	"github.com/nsyszr/relay/pkg/storage/memory"
	"github.com/nsyszr/relay/pkg/storage/postgres"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type relayServer struct {
	c *config.Config

	quitCh chan bool
	doneCh chan bool

	nc     *nats.Conn
	store  storage.Interface
	broker *relay.Broker
}

func init() {
	formatter := &logrus.TextFormatter{
		FullTimestamp: true,
	}
	logrus.SetFormatter(formatter)

	// Output to stdout instead of the default stderr
	log.SetOutput(os.Stdout)

	log.SetLevel(log.InfoLevel)
}

func newRelayServer(c *config.Config) (*relayServer, error) {
	if lvl, err := log.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.Warnf("unknown log level '%s', using info", c.LogLevel)
	}

	s := &relayServer{
		c:      c,
		quitCh: make(chan bool),
		doneCh: make(chan bool),
	}

	if c.DatabaseURL != "" {
		db, err := postgres.Open(c.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open event store")
		}
		s.store = postgres.NewStore(db)
		log.Info("Using PostgreSQL event store")
	} else {
		s.store = memory.NewStore(c.MaxEvents)
		log.Info("Using memory event store")
	}

	opts := relay.Options{
		DeviceTimeout:        c.DeviceTimeoutDuration(),
		DeviceSweepInterval:  c.DeviceSweepIntervalDuration(),
		FrontendPingInterval: c.FrontendPingIntervalDuration(),
		Store:                s.store,
	}

	if c.NATSServerURL != "" {
		nc, err := connectNATS(c.NATSServerURL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to NATS")
		}
		s.nc = nc
		opts.Publisher = natsio.NewPublisher(nc, c.NATSSubject)
	}

	s.broker = relay.NewBroker(opts)

	return s, nil
}

func connectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("relayd"),
		nats.DrainTimeout(shutdownTimeout),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Errorf("nats error: %v", err)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("nats reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("nats connection closed")
		}))
}

func (s *relayServer) Serve() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(logger())

	relay.NewHandler(s.broker, s.c.OutboxSize, s.c.MaxMessageSize).RegisterRoutes(e)
	api.NewHandler(s.broker, s.store, s.nc, s.c.NATSSubject).RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx, cancel := context.WithCancel(context.Background())
	brokerDone := make(chan struct{})
	go func() {
		defer close(brokerDone)
		s.broker.Run(ctx)
	}()

	go func() {
		log.WithFields(log.Fields{
			"host": s.c.BindHost,
			"port": s.c.BindPort,
		}).Info("Starting server")

		if err := e.Start(fmt.Sprintf("%s:%d", s.c.BindHost, s.c.BindPort)); err != nil {
			log.Infof("Shutting down the server: %v", err)
		}
	}()

	// Wait until receiving the quit signal
	<-s.quitCh
	log.Info("Shutdown signal received")

	// Create a 10 second timeout context
	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()

	// Shutdown the echo web server
	if err := e.Shutdown(sctx); err != nil {
		log.Errorf("echo shutdown: %v", err)
	}

	cancel()
	<-brokerDone

	// We've done!
	s.doneCh <- true
}

func (s *relayServer) Shutdown() {
	// Send the quit signal to the Serve() routine
	s.quitCh <- true

	// Wait up to 10 seconds
	select {
	case <-s.doneCh:
		log.Info("Shutdown server successful")
	case <-time.After(shutdownTimeout):
		log.Error("Shutdown server failed")
	}

	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			log.Errorf("nats drain: %v", err)
		}
	}
}

func RunServeRelay(c *config.Config) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		s, err := newRelayServer(c)
		if err != nil {
			log.Error("failed to create new server instance: ", err)
			os.Exit(1)
		}

		go s.Serve()

		// Wait for interrupt signal to gracefully shutdown the server
		quitCh := make(chan os.Signal, 1)
		signal.Notify(quitCh, os.Interrupt, syscall.SIGTERM)
		<-quitCh

		// Shutdown the server
		s.Shutdown()
	}
}
