package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/portfolio-contact/backend/internal/config"
	"github.com/portfolio-contact/backend/internal/logging"
	"github.com/portfolio-contact/backend/internal/repository"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate [command]

Commands:
  (default)   apply pending migrations
  status      list migrations and whether they are applied
  reset       drop everything and apply the consolidated schema
  fresh       drop everything and apply every migration in order`)
	os.Exit(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("load config failed", "error", err)
	}
	logging.Setup(cfg.LogLevel)
	if cfg.Store.Driver != config.DriverPostgres {
		logging.Fatal("migrations need STORE_DRIVER=postgres", "driver", cfg.Store.Driver)
	}

	ctx := context.Background()
	pool, err := repository.NewPool(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		logging.Fatal("connect failed", "error", err)
	}
	defer pool.Close()

	m := &migrator{pool: pool, dir: findMigrationDir()}

	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "":
		m.incremental(ctx)
	case "status":
		m.status(ctx)
	case "reset":
		m.dropAll(ctx)
		m.consolidated(ctx)
	case "fresh":
		m.dropAll(ctx)
		m.incremental(ctx)
	default:
		usage()
	}
}

type migrator struct {
	pool *pgxpool.Pool
	dir  string
}

func findMigrationDir() string {
	dir := "migrations"
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		dir = "../migrations"
	}
	return dir
}

// upFiles returns the .up.sql file names in order.
func (m *migrator) upFiles() []string {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		logging.Fatal("read migrations dir failed", "dir", m.dir, "error", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files
}

func (m *migrator) ensureTable(ctx context.Context) {
	if _, err := m.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		logging.Fatal("create schema_migrations failed", "error", err)
	}
}

func (m *migrator) applied(ctx context.Context, name string) bool {
	var exists bool
	_ = m.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE name=$1)", name).Scan(&exists)
	return exists
}

func (m *migrator) exec(ctx context.Context, file string) {
	sql, err := os.ReadFile(filepath.Join(m.dir, file))
	if err != nil {
		logging.Fatal("read migration failed", "file", file, "error", err)
	}
	if _, err := m.pool.Exec(ctx, string(sql)); err != nil {
		logging.Fatal("migration failed", "file", file, "error", err)
	}
}

func (m *migrator) incremental(ctx context.Context) {
	m.ensureTable(ctx)

	count := 0
	for _, file := range m.upFiles() {
		name := strings.TrimSuffix(file, ".up.sql")
		if m.applied(ctx, name) {
			continue
		}
		m.exec(ctx, file)
		if _, err := m.pool.Exec(ctx, "INSERT INTO schema_migrations (name) VALUES ($1)", name); err != nil {
			logging.Fatal("record migration failed", "migration", name, "error", err)
		}
		count++
		slog.Info("migration applied", "migration", name)
	}

	if count == 0 {
		slog.Info("all migrations already applied")
	} else {
		slog.Info("migrations completed", "count", count)
	}
}

func (m *migrator) status(ctx context.Context) {
	m.ensureTable(ctx)
	for _, file := range m.upFiles() {
		name := strings.TrimSuffix(file, ".up.sql")
		state := "pending"
		if m.applied(ctx, name) {
			state = "applied"
		}
		fmt.Printf("%-8s %s\n", state, name)
	}
}

func (m *migrator) dropAll(ctx context.Context) {
	slog.Info("dropping all tables")
	m.exec(ctx, "000_drop_all.sql")
}

// consolidated applies the single-file schema and records every migration as
// applied.
func (m *migrator) consolidated(ctx context.Context) {
	slog.Info("applying consolidated schema")
	m.exec(ctx, "000_consolidated.sql")

	m.ensureTable(ctx)
	files := m.upFiles()
	for _, file := range files {
		name := strings.TrimSuffix(file, ".up.sql")
		_, _ = m.pool.Exec(ctx, "INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT DO NOTHING", name)
	}
	slog.Info("consolidated schema applied", "migrations_marked", len(files))
}
