// Package sqlitemigrate applies embedded SQL migrations to SQLite stores.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const (
	migrationTable = "schema_migrations"
	upMarker       = "-- +migrate Up"
	downMarker     = "-- +migrate Down"
)

type migration struct {
	key  string
	file string
}

// ApplyMigrations executes the .sql files under migrationRoot in lexical order,
// each at most once. Applied files are keyed by their root-relative path.
func ApplyMigrations(ctx context.Context, sqlDB *sql.DB, migrationFS fs.FS, migrationRoot string) error {
	if sqlDB == nil {
		return fmt.Errorf("sql db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pending, err := listMigrations(migrationFS, migrationRoot)
	if err != nil {
		return err
	}

	if _, err := sqlDB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, m := range pending {
		if err := applyOne(ctx, sqlDB, migrationFS, m); err != nil {
			return err
		}
	}
	return nil
}

func listMigrations(migrationFS fs.FS, migrationRoot string) ([]migration, error) {
	root := strings.TrimSpace(migrationRoot)
	if root == "" {
		root = "."
	}
	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		key := entry.Name()
		if root != "." {
			key = path.Join(root, entry.Name())
		}
		out = append(out, migration{key: key, file: path.Join(root, entry.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out, nil
}

func applyOne(ctx context.Context, sqlDB *sql.DB, migrationFS fs.FS, m migration) error {
	applied, err := isApplied(ctx, sqlDB, m.key)
	if err != nil {
		return fmt.Errorf("check migration %s: %w", m.key, err)
	}
	if applied {
		return nil
	}

	content, err := fs.ReadFile(migrationFS, m.file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.key, err)
	}
	upSQL := ExtractUpMigration(string(content))
	if strings.TrimSpace(upSQL) == "" {
		return nil
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.key, err)
	}
	for i, stmt := range SplitStatements(upSQL) {
		// Existing objects are skipped one statement at a time.
		if _, err := tx.ExecContext(ctx, stmt); err != nil && !IsAlreadyExistsError(err) {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s statement %d: %w", m.key, i+1, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
		m.key,
		time.Now().UTC().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", m.key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.key, err)
	}
	return nil
}

// ExtractUpMigration returns the SQL between the Up and Down markers. Files
// without markers are treated as entirely Up.
func ExtractUpMigration(content string) string {
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	body := content[upIdx+len(upMarker):]
	if downIdx := strings.Index(body, downMarker); downIdx != -1 {
		return body[:downIdx]
	}
	return body
}

// SplitStatements breaks a migration body into single statements. Semicolons
// inside quotes, comments, and CREATE TRIGGER bodies do not split.
func SplitStatements(body string) []string {
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" && !isCommentOnly(stmt) {
			out = append(out, stmt)
		}
		current.Reset()
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\'' || c == '"':
			end := closingQuote(body, i)
			current.WriteString(body[i:end])
			i = end - 1
		case c == '-' && i+1 < len(body) && body[i+1] == '-':
			end := strings.IndexByte(body[i:], '\n')
			if end == -1 {
				end = len(body) - i
			}
			current.WriteString(body[i : i+end])
			i += end - 1
		case c == ';':
			current.WriteByte(c)
			if inTriggerBody(current.String()) {
				continue
			}
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()
	return out
}

func closingQuote(body string, start int) int {
	quote := body[start]
	for i := start + 1; i < len(body); i++ {
		if body[i] != quote {
			continue
		}
		if i+1 < len(body) && body[i+1] == quote {
			i++
			continue
		}
		return i + 1
	}
	return len(body)
}

// inTriggerBody reports whether stmt is a CREATE TRIGGER that has not yet
// reached its closing END.
func inTriggerBody(stmt string) bool {
	fields := strings.Fields(strings.ToUpper(stripComments(stmt)))
	isTrigger := false
	for i, field := range fields {
		if field == "TRIGGER" && i > 0 && fields[0] == "CREATE" {
			isTrigger = true
			break
		}
	}
	if !isTrigger {
		return false
	}
	last := strings.TrimSuffix(fields[len(fields)-1], ";")
	return last != "END"
}

func stripComments(stmt string) string {
	lines := strings.Split(stmt, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "--"); idx != -1 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

func isCommentOnly(stmt string) bool {
	return strings.TrimSpace(stripComments(stmt)) == ""
}

// IsAlreadyExistsError reports whether err comes from DDL that already ran.
func IsAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

func isApplied(ctx context.Context, sqlDB *sql.DB, name string) (bool, error) {
	var found int
	err := sqlDB.QueryRowContext(ctx, "SELECT 1 FROM "+migrationTable+" WHERE name = ?", name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
