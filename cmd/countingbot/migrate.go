package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashureev/countingbot/internal/config"
	"github.com/ashureev/countingbot/internal/legacy"
	"github.com/ashureev/countingbot/internal/store"
)

func newMigrateCommand() *cobra.Command {
	var (
		dbPath, statsPath, achievementsPath string
		force                               bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Import the legacy JSON snapshot files into the database",
		Long: `Import countingStats.json and userAchievements.json from the previous bot.

Users are upserted and achievements inserted if absent, so the import can be
re-run safely. Missing files are skipped.

Stop the bot before importing. The import refuses to run against a database
that already holds a counting baseline unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveDBPath(dbPath)
			if err != nil {
				return err
			}
			repo, err := store.NewSQLite(path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer repo.Close()

			im := legacy.NewImporter(repo, nil)
			im.Force = force
			res, err := im.Run(cmd.Context(), statsPath, achievementsPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users: %d, achievements awarded: %d, already held: %d, skipped: %d\n",
				res.Users, res.Awarded, res.AlreadyHeld, res.SkippedItems)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (defaults to the configured store path)")
	cmd.Flags().StringVar(&statsPath, "stats", "data/countingStats.json", "legacy stats file")
	cmd.Flags().StringVar(&achievementsPath, "achievements", "data/userAchievements.json", "legacy achievements file")
	cmd.Flags().BoolVar(&force, "force", false, "import even if counting has already started (the bot must be stopped)")
	return cmd
}

// resolveDBPath prefers the flag and falls back to the configured store path.
func resolveDBPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := config.LoadUnchecked()
	if err != nil {
		return "", fmt.Errorf("load configuration: %w", err)
	}
	return cfg.Store.Path, nil
}
