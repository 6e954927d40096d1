package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ridopark/chanlun-engine/internal/database"
)

var (
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Database migration management",
		Long:  `Apply or roll back the confirmed buy/sell point sink's schema, tracked in migrations/*.{up,down}.sql.`,
	}

	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Long:  `Apply every migrations/NNN_*.up.sql file not yet recorded in schema_migrations, in version order.`,
		RunE:  runMigrateUp,
	}

	migrateDownCmd = &cobra.Command{
		Use:   "down [steps]",
		Short: "Rollback migrations",
		Long:  `Run the NNN_*.down.sql file for the most recently applied migrations. Specify number of steps (default: 1).`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMigrateDown,
	}

	migrateStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  `List every migrations/NNN_*.up.sql file found on disk against schema_migrations.`,
		RunE:  runMigrateStatus,
	}

	migrateCreateCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Create new migration file",
		Long:  `Create a new pair of migration files, numbered one past the highest version on disk.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runMigrateCreate,
	}
)

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateCreateCmd)
}

const migrationsDir = "migrations"

// migrationFile is one discovered NNN_name.{up,down}.sql pair.
type migrationFile struct {
	version  int
	name     string
	upPath   string
	downPath string
}

var migrationFileRe = regexp.MustCompile(`^(\d+)_(.+)\.up\.sql$`)

// discoverMigrations scans migrationsDir for *.up.sql files and pairs each
// with its *.down.sql sibling, sorted by version ascending.
func discoverMigrations() ([]migrationFile, error) {
	entries, err := ioutil.ReadDir(migrationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var out []migrationFile
	for _, e := range entries {
		m := migrationFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		version, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, migrationFile{
			version:  version,
			name:     m[2],
			upPath:   filepath.Join(migrationsDir, e.Name()),
			downPath: filepath.Join(migrationsDir, fmt.Sprintf("%03d_%s.down.sql", version, m[2])),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// ensureSchemaMigrationsTable creates the bookkeeping table used to track
// which migrations have already been applied.
func ensureSchemaMigrationsTable(ctx context.Context, db *database.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			name        TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func appliedVersions(ctx context.Context, db *database.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan schema_migrations row: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	_, db, err := initializeApp()
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("database.enabled must be true to run migrations")
	}
	defer db.Close()

	ctx := context.Background()
	if err := ensureSchemaMigrationsTable(ctx, db); err != nil {
		return fmt.Errorf("failed to prepare schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	migrations, err := discoverMigrations()
	if err != nil {
		return err
	}

	applyCount := 0
	for _, m := range migrations {
		if applied[m.version] {
			continue
		}

		sqlBytes, err := ioutil.ReadFile(m.upPath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", m.upPath, err)
		}

		if _, err := db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %03d_%s: %w", m.version, m.name, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name); err != nil {
			return fmt.Errorf("failed to record migration %03d_%s: %w", m.version, m.name, err)
		}

		fmt.Printf("applied %03d_%s\n", m.version, m.name)
		applyCount++
	}

	if applyCount == 0 {
		fmt.Println("schema already up to date")
	}
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	steps := 1
	if len(args) > 0 {
		var err error
		steps, err = strconv.Atoi(args[0])
		if err != nil || steps < 1 {
			return fmt.Errorf("invalid steps value: must be a positive integer")
		}
	}

	_, db, err := initializeApp()
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("database.enabled must be true to run migrations")
	}
	defer db.Close()

	ctx := context.Background()
	if err := ensureSchemaMigrationsTable(ctx, db); err != nil {
		return fmt.Errorf("failed to prepare schema_migrations: %w", err)
	}

	migrations, err := discoverMigrations()
	if err != nil {
		return err
	}
	byVersion := make(map[int]migrationFile, len(migrations))
	for _, m := range migrations {
		byVersion[m.version] = m
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	var appliedSorted []int
	for v := range applied {
		appliedSorted = append(appliedSorted, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(appliedSorted)))

	if steps > len(appliedSorted) {
		steps = len(appliedSorted)
	}

	for i := 0; i < steps; i++ {
		version := appliedSorted[i]
		m, ok := byVersion[version]
		if !ok {
			return fmt.Errorf("schema_migrations records version %d but no matching file exists on disk", version)
		}

		sqlBytes, err := ioutil.ReadFile(m.downPath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", m.downPath, err)
		}
		if _, err := db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to roll back migration %03d_%s: %w", m.version, m.name, err)
		}
		if _, err := db.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version); err != nil {
			return fmt.Errorf("failed to unrecord migration %03d_%s: %w", m.version, m.name, err)
		}

		fmt.Printf("rolled back %03d_%s\n", m.version, m.name)
	}

	if steps == 0 {
		fmt.Println("no migrations to roll back")
	}
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	_, db, err := initializeApp()
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("database.enabled must be true to check migration status")
	}
	defer db.Close()

	ctx := context.Background()
	if err := ensureSchemaMigrationsTable(ctx, db); err != nil {
		return fmt.Errorf("failed to prepare schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	migrations, err := discoverMigrations()
	if err != nil {
		return err
	}

	fmt.Println("Migration Status:")
	fmt.Println("=================")
	if len(migrations) == 0 {
		fmt.Println("no migration files found under migrations/")
		return nil
	}
	for _, m := range migrations {
		state := "pending"
		if applied[m.version] {
			state = "applied"
		}
		fmt.Printf("%03d_%-30s %s\n", m.version, m.name, state)
	}
	return nil
}

func runMigrateCreate(cmd *cobra.Command, args []string) error {
	name := args[0]
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("migration name cannot be empty")
	}

	migrations, err := discoverMigrations()
	if err != nil {
		return err
	}
	next := 1
	for _, m := range migrations {
		if m.version >= next {
			next = m.version + 1
		}
	}

	slug := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	base := fmt.Sprintf("%03d_%s", next, slug)
	upFile := filepath.Join(migrationsDir, base+".up.sql")
	downFile := filepath.Join(migrationsDir, base+".down.sql")

	if err := os.MkdirAll(migrationsDir, 0755); err != nil {
		return fmt.Errorf("failed to create migrations directory: %w", err)
	}

	upContent := fmt.Sprintf("-- Migration: %s\n\n-- Add your up migration SQL here\n", name)
	if err := ioutil.WriteFile(upFile, []byte(upContent), 0644); err != nil {
		return fmt.Errorf("failed to create up migration file: %w", err)
	}

	downContent := fmt.Sprintf("-- Migration rollback: %s\n\n-- Add your down migration SQL here\n", name)
	if err := ioutil.WriteFile(downFile, []byte(downContent), 0644); err != nil {
		return fmt.Errorf("failed to create down migration file: %w", err)
	}

	fmt.Printf("Created migration files:\n  %s\n  %s\n", upFile, downFile)
	return nil
}
