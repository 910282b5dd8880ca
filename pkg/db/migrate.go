package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    filename   TEXT PRIMARY KEY,
    checksum   TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrator применяет *.sql из каталога по порядку имён, каждый файл в своей транзакции.
type Migrator struct {
	db     *sqlx.DB
	dir    string
	logger *zap.Logger
}

type appliedMigration struct {
	Filename string `db:"filename"`
	Checksum string `db:"checksum"`
}

func NewMigrator(db *sqlx.DB, dir string, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: db, dir: dir, logger: logger}
}

// ApplyAll применяет новые миграции и возвращает их имена.
// Изменённый после применения файл - ошибка.
func (m *Migrator) ApplyAll(ctx context.Context) ([]string, error) {
	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var rows []appliedMigration
	if err := m.db.SelectContext(ctx, &rows, "SELECT filename, checksum FROM schema_migrations"); err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	applied := make(map[string]string, len(rows))
	for _, r := range rows {
		applied[r.Filename] = r.Checksum
	}

	files, err := MigrationFiles(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration files: %w", err)
	}

	var done []string
	for _, filename := range files {
		content, err := os.ReadFile(filepath.Join(m.dir, filename))
		if err != nil {
			return done, err
		}
		checksum := checksumOf(content)

		if stored, ok := applied[filename]; ok {
			if stored != checksum {
				return done, fmt.Errorf("migration %s has been modified (expected checksum %s, got %s)",
					filename, stored, checksum)
			}
			continue
		}

		if err := m.apply(ctx, filename, string(content), checksum); err != nil {
			return done, fmt.Errorf("failed to apply migration %s: %w", filename, err)
		}
		m.logger.Info("Applied migration", zap.String("file", filename), zap.String("checksum", checksum[:8]))
		done = append(done, filename)
	}

	return done, nil
}

func (m *Migrator) apply(ctx context.Context, filename, content, checksum string) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			m.logger.Warn("failed to rollback migration", zap.String("file", filename), zap.Error(err))
		}
	}()

	if _, err := tx.ExecContext(ctx, content); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (filename, checksum) VALUES ($1, $2)",
		filename, checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// MigrationFiles возвращает *.sql из dir, отсортированные по имени.
func MigrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	return files, nil
}

func checksumOf(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}
