package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"ticketprint/internal/config"
	"ticketprint/internal/dispatch"
	"ticketprint/internal/logging"
	"ticketprint/internal/printapi"
	"ticketprint/internal/printer"
	"ticketprint/internal/request"
	"ticketprint/internal/server"
	"ticketprint/internal/ticket"
)

func main() {
	configPath := flag.String("config", "ticketprint.yaml", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	driver, err := newDriver(cfg.Printer, log)
	if err != nil {
		log.Fatal().Err(err).Msg("printer driver")
	}

	opts := []dispatch.Option{
		dispatch.WithLogger(log.With().Str("component", "dispatch").Logger()),
		dispatch.WithSettings(printer.Settings{
			DPI:          cfg.Printer.DPI,
			WidthMM:      cfg.Printer.WidthMM,
			CharsPerLine: cfg.Printer.CharsPerLine,
		}),
		dispatch.WithFormatter(&ticket.Formatter{
			Facility:        cfg.Ticket.Facility,
			Brand:           cfg.Ticket.Brand,
			NormalizeValues: cfg.Ticket.NormalizeValues,
		}),
	}
	if cfg.Ticket.LogoPath != "" {
		logo, err := loadImage(cfg.Ticket.LogoPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Ticket.LogoPath).Msg("logo")
		}
		opts = append(opts, dispatch.WithLogo(logo))
	}

	api := printapi.New(dispatch.New(driver, opts...), log.With().Str("component", "api").Logger())
	api.SurfaceErrors = cfg.Server.SurfaceErrors
	api.PrintTimeout = cfg.Server.PrintTimeout

	matcher, _ := request.MatcherByName(cfg.Server.Matching)
	srv, err := server.Serve(cfg.Server.Port, api.Handler(),
		server.WithMatcher(matcher),
		server.WithReadTimeout(cfg.Server.ReadTimeout),
		server.WithConcurrent(cfg.Server.Concurrent),
		server.WithLogger(log.With().Str("component", "server").Logger()),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Error starting server")
	}

	log.Info().Int("port", cfg.Server.Port).Str("matching", cfg.Server.Matching).Msg("Server started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	_ = srv.Close()
	srv.Wait()
	log.Info().Msg("Server gracefully stopped")
}

func newDriver(cfg config.PrinterConfig, log zerolog.Logger) (*printer.RawDriver, error) {
	cm, err := printer.LookupCodePage(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	targets := make([]printer.Target, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		targets = append(targets, printer.Target{Kind: printer.TargetKind(t.Type), Address: t.Address})
	}

	return &printer.RawDriver{
		Targets:     targets,
		CodePage:    cm,
		DialTimeout: cfg.DialTimeout,
		Log:         log.With().Str("component", "printer").Logger(),
	}, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
