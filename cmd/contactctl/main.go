// Command contactctl submits, lists, exports and watches contact messages
// directly against the configured store.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/portfolio-contact/backend/internal/config"
	"github.com/portfolio-contact/backend/internal/dashboard"
	"github.com/portfolio-contact/backend/internal/logging"
	"github.com/portfolio-contact/backend/internal/repository"
	"github.com/spf13/cobra"
)

var (
	storeDriver string
	verbose     bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:           "contactctl",
	Short:         "Work with contact form messages",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "Store driver (postgres or memory; default STORE_DRIVER)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// env is what every subcommand needs: configuration and an open store.
type env struct {
	cfg      *config.Config
	repo     repository.ContactRepository
	renderer *dashboard.Renderer
	close    func()
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if verbose {
		level = "DEBUG"
	}
	slog.SetDefault(logging.New(os.Stderr, level, true))

	driver := cfg.Store.Driver
	if storeDriver != "" {
		driver = storeDriver
	}
	repo, closeRepo, err := repository.Open(ctx, driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	loc, _ := cfg.Location()
	return &env{cfg: cfg, repo: repo, renderer: dashboard.NewRenderer(loc), close: closeRepo}, nil
}

// addFilterFlags registers the list filter controls on cmd.
func addFilterFlags(cmd *cobra.Command, status, search, sort *string) {
	cmd.Flags().StringVar(status, "status", dashboard.StatusAll, "Status filter: all, unread, read or replied")
	cmd.Flags().StringVarP(search, "search", "q", "", "Case-insensitive search over name, email, message and subject")
	cmd.Flags().StringVar(sort, "sort", string(dashboard.SortNewest), "Sort order: newest or oldest")
}

// loadView reads the whole collection once and projects it.
func loadView(ctx context.Context, repo repository.ContactRepository, f dashboard.Filter) (dashboard.State, error) {
	engine := dashboard.NewEngine(repo, dashboard.WithFilter(f))
	if err := engine.Load(ctx); err != nil {
		return dashboard.State{}, err
	}
	return engine.State(), nil
}
