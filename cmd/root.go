package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quizler",
	Short: "Quizler - real-time multiplayer quiz server",
	Long: `Quizler hosts real-time multiplayer quiz games. Creators upload a quiz,
share the five character game code and run the game live while players
answer from their own devices.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Global flags can be added here
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is .env)")
}
