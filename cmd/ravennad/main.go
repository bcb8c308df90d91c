// Command ravennad runs a RAVENNA/AES67 node: a PTP slave port, an RTP
// receiver, an RTCP sender/consumer pair, and the HTTP façade exposing
// health, metrics, and a narrow NMOS IS-04 subset.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ravennakit/ravennakit/internal/config"
	"github.com/ravennakit/ravennakit/internal/httpapi"
	"github.com/ravennakit/ravennakit/internal/node"
	ptp "github.com/ravennakit/ravennakit/ptp/protocol"
)

var (
	configFile string
	logLevel   string
	label      string
)

var rootCmd = &cobra.Command{
	Use:   "ravennad",
	Short: "RAVENNA/AES67 receive node daemon",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "Path to the node's YAML config file")
	rootCmd.Flags().StringVar(&logLevel, "loglevel", "info", "Log level: debug, info, warning, error")
	rootCmd.Flags().StringVar(&label, "label", "ravennad", "Node label advertised over NMOS")
	_ = rootCmd.MarkFlagRequired("config")
}

func configureLogLevel() error {
	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		return fmt.Errorf("unrecognized log level: %v", logLevel)
	}
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	if err := configureLogLevel(); err != nil {
		return err
	}

	cfg, err := config.ReadConfig(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	mac, err := localMAC(cfg.PTP.Iface)
	if err != nil {
		return fmt.Errorf("resolving local clock identity: %w", err)
	}
	clockIdentity, err := ptp.NewClockIdentity(mac)
	if err != nil {
		return fmt.Errorf("deriving clock identity: %w", err)
	}
	local := ptp.PortIdentity{ClockIdentity: clockIdentity, PortNumber: 1}

	n := node.New(cfg, local, label)
	if err := n.Start(time.Now()); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}
	defer n.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return n.Run(ctx) })
	eg.Go(func() error {
		server := httpapi.NewServer(n)
		log.Infof("ravennad: listening on :%d", cfg.MonitoringPort)
		return httpServe(ctx, cfg.MonitoringPort, server)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("ravennad: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
