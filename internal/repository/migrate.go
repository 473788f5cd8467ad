package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
)

//go:embed migrations
var migrationFS embed.FS

const migrationsTable = "schema_migrations"

// Migration is one embedded DDL file.
type Migration struct {
	Version string
	SQL     string
}

// Migrations returns the embedded migrations for the dialect, oldest first.
func Migrations(dialectName string) ([]Migration, error) {
	dir := "migrations/sqlite"
	if dialectName == dialect.Postgres {
		dir = "migrations/postgres"
	}
	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return nil, err
	}
	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := fs.ReadFile(migrationFS, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Version: strings.TrimSuffix(e.Name(), ".sql"), SQL: string(b)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Migrate applies every embedded migration not yet recorded in schema_migrations.
// It returns the versions applied by this call.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn := db.sqlDB()
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (version TEXT PRIMARY KEY, applied_at TIMESTAMP NOT NULL)", migrationsTable)); err != nil {
		return nil, common.DatabaseError("create migrations table", err)
	}

	applied := map[string]bool{}
	q, args := db.builder().Select("version").From(entsql.Table(migrationsTable)).Query()
	rows, err := conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, common.DatabaseError("read migrations", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return nil, common.DatabaseError("scan migration", err)
		}
		applied[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError("read migrations", err)
	}

	migrations, err := Migrations(db.Dialect())
	if err != nil {
		return nil, common.DatabaseError("load migrations", err)
	}

	var done []string
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		start := time.Now()
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return done, common.DatabaseError("begin migration", err)
		}
		for _, stmt := range splitStatements(m.SQL) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				logger.Error("db.migrate.failed", "version", m.Version, "error", err)
				return done, common.DatabaseError("apply migration "+m.Version, err)
			}
		}
		ins, insArgs := db.builder().Insert(migrationsTable).
			Columns("version", "applied_at").
			Values(m.Version, time.Now().UTC()).
			Query()
		if _, err := tx.ExecContext(ctx, ins, insArgs...); err != nil {
			_ = tx.Rollback()
			return done, common.DatabaseError("record migration "+m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return done, common.DatabaseError("commit migration "+m.Version, err)
		}
		logger.Info("db.migrate.applied", "version", m.Version, "elapsed_ms", time.Since(start).Milliseconds())
		done = append(done, m.Version)
	}
	return done, nil
}

func splitStatements(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
