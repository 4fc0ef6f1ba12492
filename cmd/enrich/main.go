package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alimgiray/opendev/pkg/config"
	"github.com/alimgiray/opendev/pkg/logger"
	"github.com/alimgiray/opendev/pkg/opendev"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	dataFolder string
	dbFilename string
	token      string
	reset      bool
)

var rootCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Backfill user_info with GitHub profiles",
	Long: "Enrich looks up every canonical developer that has no user_info row yet on the " +
		"GitHub GraphQL API and stores the profile. Runs are resumable: developers already " +
		"in user_info are skipped.",
	SilenceUsage: true,
	RunE:         runEnrich,
}

func init() {
	rootCmd.Flags().StringVar(&dataFolder, "data-folder", "", "folder holding the database (default: OPENDEV_DATA_FOLDER or ./data)")
	rootCmd.Flags().StringVar(&dbFilename, "db", "", "database file name (default: OPENDEV_DB_FILENAME or odd.db)")
	rootCmd.Flags().StringVar(&token, "token", "", "GitHub token (default: GITHUB_TOKEN)")
	rootCmd.Flags().BoolVar(&reset, "reset", false, "delete existing user_info rows before enriching")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.AppConfig
	logger.Init(cfg.LogLevel)

	if dataFolder == "" {
		dataFolder = cfg.Database.DataFolder
	}
	if dbFilename == "" {
		dbFilename = cfg.Database.Filename
	}
	if token == "" {
		token = cfg.GitHub.Token
	}

	client, err := opendev.Open(dataFolder, dbFilename, opendev.WithGitHubAPIURL(cfg.GitHub.APIURL))
	if err != nil {
		return err
	}
	defer client.Close()

	if reset {
		logger.Warnf("Resetting user_info")
		if err := client.ResetUserInfo(); err != nil {
			return fmt.Errorf("failed to reset user_info: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	progress, err := client.CreateUserInfoTable(ctx, token)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"total":     progress.Total,
		"processed": progress.Processed,
		"failed":    progress.Failed,
	}).Info("Enrichment finished")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
