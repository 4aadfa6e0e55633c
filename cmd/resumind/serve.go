package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resumind-backend/internal/bootstrap"
	"resumind-backend/internal/shared/server"
	"resumind-backend/internal/shared/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()
		configureLogging(cfg)
		ctx := cmd.Context()

		a, err := bootstrap.BuildContext(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		go a.RunLocalSweeper(ctx, 30*time.Second)

		srv := &http.Server{
			Addr:              server.Addr(cfg.Port),
			Handler:           a.Router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		telemetry.Info("serve.start", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("port", "", "listen port")
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}
