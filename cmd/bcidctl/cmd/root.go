// Package cmd contains the CLI commands for bcidctl.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/biscicol/bcid/internal/models"
	"github.com/biscicol/bcid/internal/storage"
)

// defaultDBPath is the default database path, can be overridden via BCID_DB_PATH env var
var defaultDBPath = "data/bcid.db"

func init() {
	if envPath := os.Getenv("BCID_DB_PATH"); envPath != "" {
		defaultDBPath = envPath
	}
}

var (
	// Used for flags
	verbose bool
	dbPath  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bcidctl",
	Short: "bcidctl - BCID administration tool",
	Long: `bcidctl manages a BCID identifier database directly, without
going through the HTTP API.

BCIDs are persistent identifiers for biological collection research
artifacts. Projects group expeditions; expeditions are minted with a
short human code and receive a stable numeric identifier.

Examples:
  # List all projects
  bcidctl project list

  # Create a project
  bcidctl project create --code BALI --title "Bali reef survey" --owner admin

  # Mint an expedition
  bcidctl expedition mint --project BALI --code DEMO1 --title "Demo" --user admin

  # Resolve an allocation token
  bcidctl resolve --token 2b1f...`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "path to SQLite database file")
}

// openDB opens the database for direct access.
func openDB() (*storage.SQLiteStorage, error) {
	store := storage.NewSQLiteStorage(dbPath)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

// resolveProject finds a project by code or numeric id string.
func resolveProject(ctx context.Context, repo storage.ProjectRepository, code, idStr string) (*models.Project, error) {
	switch {
	case code != "":
		p, err := repo.GetByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("get project: %w", err)
		}
		if p == nil {
			return nil, fmt.Errorf("project not found: %s", code)
		}
		return p, nil
	case idStr != "":
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid project id: %s", idStr)
		}
		p, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get project: %w", err)
		}
		if p == nil {
			return nil, fmt.Errorf("project not found: %d", id)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("specify --project or --project-id")
	}
}

// resolveUser finds a user by username or numeric id string.
func resolveUser(ctx context.Context, repo storage.UserRepository, username, idStr string) (*models.User, error) {
	switch {
	case username != "":
		u, err := repo.GetByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
		if u == nil {
			return nil, fmt.Errorf("user not found: %s", username)
		}
		return u, nil
	case idStr != "":
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id: %s", idStr)
		}
		u, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
		if u == nil {
			return nil, fmt.Errorf("user not found: %d", id)
		}
		return u, nil
	default:
		return nil, fmt.Errorf("specify --user or --user-id")
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-2] + ".."
}
