package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"doiver/internal/app"
	"doiver/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Publish", "RecordUpdate").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readContent returns the article body from the --file flag, or stdin when
// the flag is unset.
func readContent(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

var rootCmd = &cobra.Command{
	Use:   "doiver",
	Short: "DOI registration and article version history",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", defaults["base_dir"])
		fmt.Printf("DOI Prefix: %s\n", cfg.Registrar.DOIPrefix)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("DOI Prefix:  %s\n", cfg.Registrar.DOIPrefix)
		fmt.Printf("Listen Addr: %s\n", cfg.HTTP.ListenAddr)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Archive:     %s\n", cfg.Archive.Type)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage archive encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the archive encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SetupKeys")
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Print("Passphrase for private key: ")
		passphrase, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		if len(passphrase) == 0 {
			return fmt.Errorf("passphrase must not be empty")
		}

		if err := a.SetupKeys(string(passphrase)); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Println("Key pair generated.")
		return nil
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		if err := app.Migrate(cfg); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		fmt.Println("Database is up to date.")
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve()
	},
}

// publish command
var publishCmd = &cobra.Command{
	Use:   "publish SLUG",
	Short: "Publish an article: mint its DOI and seed version 1",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")

		content, err := readContent(cmd)
		if err != nil {
			return err
		}

		a, err := newApp("Publish")
		if err != nil {
			return err
		}
		defer a.Close()

		article, err := a.Publish(args[0], title, content)
		if err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}

		fmt.Printf("DOI:     %s\n", article.DOI.String)
		fmt.Printf("Version: %d\n", article.CurrentVersion)
		return nil
	},
}

// update command
var updateCmd = &cobra.Command{
	Use:   "update SLUG",
	Short: "Record an update notification for an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		previousStatus, _ := cmd.Flags().GetString("previous-status")

		content, err := readContent(cmd)
		if err != nil {
			return err
		}

		a, err := newApp("RecordUpdate")
		if err != nil {
			return err
		}
		defer a.Close()

		version, err := a.RecordUpdate(args[0], content, previousStatus)
		if err != nil {
			return fmt.Errorf("update failed: %w", err)
		}

		if version == 0 {
			fmt.Println("No new version recorded.")
		} else {
			fmt.Printf("Version: %d\n", version)
		}
		return nil
	},
}

// resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve SLUG [VERSION]",
	Short: "Print the content at a version (current when omitted)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Resolve")
		if err != nil {
			return err
		}
		defer a.Close()

		requested := ""
		if len(args) > 1 {
			requested = args[1]
		}

		article, snap, err := a.Resolve(args[0], requested)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "DOI: %s  Version: %d\n", article.DOI.String, snap.Version)
		fmt.Print(snap.Content)
		return nil
	},
}

// versions command
var versionsCmd = &cobra.Command{
	Use:   "versions SLUG",
	Short: "List an article's versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListVersions")
		if err != nil {
			return err
		}
		defer a.Close()

		article, snapshots, err := a.ListVersions(args[0])
		if err != nil {
			return err
		}

		if article.DOI.Valid {
			fmt.Printf("DOI: %s\n", article.DOI.String)
		}
		for _, s := range snapshots {
			current := ""
			if s.Version == article.CurrentVersion {
				current = "  [current]"
			}
			fmt.Printf("v%d  %s  %s%s\n",
				s.Version,
				s.CreatedAt.Format("2006-01-02 15:04:05"),
				s.Checksum[:12],
				current,
			)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View registrar operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage the preservation archive",
}

var archiveSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload unarchived snapshot bodies",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ArchiveSync")
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.ArchiveSync()
		if err != nil {
			return fmt.Errorf("archive sync failed: %w", err)
		}

		fmt.Printf("Archived %d snapshot(s)\n", count)
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// archive subcommands
	archiveCmd.AddCommand(archiveSyncCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().String("title", "", "Article title")
	publishCmd.Flags().String("file", "", "Read content from file instead of stdin")
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().String("previous-status", "publish", "Status before this update")
	updateCmd.Flags().String("file", "", "Read content from file instead of stdin")
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(archiveCmd)
}
