// Package commands implements the avatarloop CLI.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/normanking/avatarloop/internal/config"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "avatarloop",
	Short: "Real-time avatar animation loop",
	Long: `avatarloop drives a rigged avatar: it blends emotion, breathing, blinking,
idle gaze, audio-driven mouth movement and touch gestures into one parameter
batch per frame and streams it to renderer clients over WebSocket.

Configuration is read from ~/.avatarloop/config.yaml (or --config) and
AVATARLOOP_* environment variables. A .env file is loaded first if present.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// a missing .env is normal
		_ = godotenv.Load(envFile)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.avatarloop/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tierCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Store, error) {
	return config.Open(configPath)
}
