package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"studytimer/internal/broadcast"
	"studytimer/internal/core/model"
	"studytimer/internal/hostbridge"
	"studytimer/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the WebSocket host bridge and history API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from settings)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveAddr == "" {
		serveAddr = settings.ServerAddr
	}

	history, err := openHistory()
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	hub := broadcast.NewHub()
	options := []hostbridge.Option{hostbridge.WithLogger(logger)}
	if history != nil {
		options = append(options, hostbridge.WithHistory(history))
	}
	bridge := hostbridge.NewServer(hostbridge.ConfigFromSettings(settings), hub, options...)

	httpServer := &http.Server{
		Addr:              serveAddr,
		Handler:           bridge.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("Host bridge listening", zap.String("addr", serveAddr), zap.String("channel", settings.Channel))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		bridge.Close()
		return httpServer.Shutdown(shutdownCtx)
	})

	if settings.MeshEnable {
		mesh := broadcast.NewMesh(hub.Open(settings.Channel), broadcast.MeshConfig{
			ListenAddr: settings.MeshListen,
			Peers:      settings.MeshPeers,
		}, logger)
		group.Go(func() error {
			return mesh.Run(groupCtx)
		})
	}

	watcher := storage.NewSettingsWatcher(configPath, func(updated model.Settings) {
		bridge.UpdateConfig(updated.Countdown)
	}, logger)
	group.Go(func() error {
		if err := watcher.Run(groupCtx); err != nil {
			logger.Warn("Settings hot reload disabled", zap.Error(err))
		}
		return nil
	})

	err = group.Wait()
	logger.Info("Host bridge stopped")
	return err
}
