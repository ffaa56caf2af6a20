package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	authfront "github.com/nubauth/authfront"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the authentication front",
	Run: func(cmd *cobra.Command, args []string) {
		configFile := viper.GetString("config_file")
		if configFile == "" {
			cobra.CheckErr("config file is required. Use --config-file/-f flag or environment variable")
		}

		server, err := authfront.NewFromConfigFile(configFile)
		if err != nil {
			slog.Error("Failed to create server", "error", err, "config_file", configFile)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := server.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server stopped", "error", err)
			os.Exit(1)
		}
	},
}
