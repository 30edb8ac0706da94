package main

import (
	"fmt"
	"log/slog"
	"os"

	"shipnotify/internal/config"
	"shipnotify/internal/credential"

	"github.com/spf13/cobra"
)

var (
	tokenFlag string
	verbose   bool
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "shipnotify",
	Short: "Mini-UPS real-time notification client",
	Long:  `Connects to the Mini-UPS notification gateway, keeps an inbox in sync and prints what arrives.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "access token (default: the one stored by login)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(loginCmd, logoutCmd, watchCmd, syncCmd, statsCmd)
}

// accessToken returns --token or the stored token.
func accessToken() (string, error) {
	if tokenFlag != "" {
		return tokenFlag, nil
	}
	token, err := credential.Token()
	if err != nil {
		return "", fmt.Errorf("%w (run `shipnotify login --token <token>`)", err)
	}
	return token, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
