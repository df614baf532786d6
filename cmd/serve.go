package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jacobtread/Quizler/internal/games"
	"github.com/jacobtread/Quizler/internal/logging"
	"github.com/jacobtread/Quizler/internal/server"
)

var logFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Quizler server",
	Long: `Start the Quizler server. This serves the embedded frontend, the quiz
upload API and the websocket endpoint games are played over.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load environment variables
		if err := godotenv.Load(); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}

		if err := logging.InitDefaultLogger(logging.Config{
			Level:       logging.INFO,
			Prefix:      "Quizler",
			Colored:     true,
			LogToFile:   logFile != "",
			LogFilePath: logFile,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %v", err)
		}

		config := server.LoadConfig()

		// Registry context governs the prepared quiz sweeper
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		registry := games.Init(ctx)
		srv := server.NewServer(registry)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		errChan := make(chan error, 1)
		go func() {
			addr := ":" + config.Port
			logging.Info("Starting HTTP server", map[string]interface{}{
				"addr": addr,
			})
			if err := srv.Run(addr); err != nil {
				errChan <- err
			}
		}()

		select {
		case err := <-errChan:
			return fmt.Errorf("server error: %v", err)
		case sig := <-sigChan:
			logging.Info("Shutting down", map[string]interface{}{
				"signal": sig.String(),
			})

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown error: %v", err)
			}
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&logFile, "log-file", "logs/quizler.log", "file server logs are written to")
	rootCmd.AddCommand(serveCmd)
}
