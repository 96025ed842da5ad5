package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-service/internal/config"
	"github.com/kozaktomas/face-service/internal/detector"
	"github.com/kozaktomas/face-service/internal/queue"
	"github.com/kozaktomas/face-service/internal/similarity"
	"github.com/kozaktomas/face-service/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the face recognition web server",
	Long: `Start the face recognition HTTP server.
The server accepts photo processing and face comparison requests and
forwards detection work to the configured detector sidecar.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 5001, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := slog.Default()

	det := detector.NewClient(cfg.Detector.URL, cfg.Detector.Model)
	resolver := queue.NewResolver(cfg.Lookup.BaseURL, cfg.Image.MaxSize)
	pool := queue.New(queue.Config{
		Workers:   cfg.Queue.Workers,
		Capacity:  cfg.Queue.Capacity,
		SoftLimit: cfg.Queue.SoftLimit,
		Detector:  det,
		Resolver:  resolver,
		Logger:    log,
	})
	engine := similarity.NewEngine(log)

	if info, err := det.ModelInfo(cmd.Context()); err != nil {
		log.Warn("detector sidecar not reachable yet", "url", cfg.Detector.URL, "error", err)
	} else {
		log.Info("detector ready", "model", info.Model, "gpu", info.UsingGPU, "device", info.DeviceInfo)
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, pool, engine, det, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", "error", err)
		}
		pool.Stop()
	}()

	log.Info("starting face service", "addr", fmt.Sprintf("http://%s:%d", host, port), "workers", cfg.Queue.Workers)

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
