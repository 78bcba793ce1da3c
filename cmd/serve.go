package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/alert"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/config"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/descriptor"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/geo"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/logger"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/web"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tracker API server",
	Long: `Start the tracker HTTP API.
The server registers cases, runs the sighting match pipeline and manages
the alert verification lifecycle.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	faceService := descriptor.NewServiceClient(cfg.FaceService.URL,
		time.Duration(cfg.FaceService.TimeoutSec)*time.Second)
	extractor := descriptor.NewExtractor(faceService, faceService, cfg.Matching.DescriptorLength, log)
	alerts := alert.NewService(st, st, cfg.Matching.Threshold, log)

	media, err := handlers.NewMediaStore(cfg.Media.Dir)
	if err != nil {
		return err
	}

	var position geo.Provider = geo.NoProvider{}
	if cfg.Geo.Enabled {
		position = geo.NewFixedProvider(cfg.Geo.Latitude, cfg.Geo.Longitude)
	}

	server := web.NewServer(cfg, web.Deps{
		Store:     st,
		Extractor: extractor,
		Alerts:    alerts,
		Media:     media,
		Position:  position,
		Log:       log,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", zap.Error(err))
		}
	}()

	log.Info("tracker API starting",
		zap.String("store", cfg.Database.Driver),
		zap.Float64("threshold", cfg.Matching.Threshold),
	)
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
