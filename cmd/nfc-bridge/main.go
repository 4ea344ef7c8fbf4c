package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cgm-bridge/cgm-bridge-server/internal/bridge"
	"github.com/cgm-bridge/cgm-bridge-server/internal/config"
	"github.com/cgm-bridge/cgm-bridge-server/internal/decoding"
	"github.com/cgm-bridge/cgm-bridge-server/internal/transport"
	"github.com/cgm-bridge/cgm-bridge-server/pkg/nfc"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/nfc-bridge.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set up the tag transport. A physical reader integration registers
	// itself here; the simulator covers development and testing.
	var tag nfc.Transport
	if cfg.Bridge.Simulate {
		tag, err = transport.NewSimTag(cfg.Bridge, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create simulated tag")
		}
		log.Info().
			Str("uid", cfg.Bridge.SimUid).
			Str("patch_info", cfg.Bridge.SimPatchInfo).
			Msg("Using simulated tag")
	} else {
		log.Fatal().Msg("No physical reader integration configured, set bridge.simulate for development")
	}

	// Optional out-of-process decoder for encrypted sensor memory
	var decoder nfc.Decoder
	if cfg.Decoder.URL != "" {
		decoder = decoding.NewClient(cfg.Decoder)
		log.Info().Str("url", cfg.Decoder.URL).Msg("Using remote decoding service")
	}

	// Connect to NATS
	log.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("cgm-nfc-bridge-"+cfg.Bridge.ReaderID),
		nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
		nats.ReconnectWait(cfg.NATS.ReconnectInterval),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Msg("Reconnected to NATS")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().
				Err(err).
				Str("subject", sub.Subject).
				Msg("NATS error")
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer nc.Close()

	log.Info().Msg("Connected to NATS")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the bridge service
	service := bridge.NewService(cfg.Bridge, nc, tag, decoder, log.Logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := service.Start(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Bridge service stopped")
		}
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	// Cancel context
	cancel()

	// Wait for all services
	wg.Wait()

	log.Info().Msg("Bridge stopped")
}
