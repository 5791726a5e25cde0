/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "mathviz/internal/log"
	"mathviz/internal/script"
	"mathviz/internal/version"

	"log/slog"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-suite ephemeral/index data under the suite root.
	IndexDirName  = ".mathviz"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// IndexPath returns the full path to the suite's embedded index database file.
func IndexPath(suiteRoot string) string {
	return filepath.Join(suiteRoot, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the per-suite SQLite index exists at
// .mathviz/index.sqlite, opens the database, enables WAL mode, and ensures the
// meta/version tables exist. The returned *sql.DB is ready for use.
func InitOrOpenIndex(suiteRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("catalog"), "index_init").With(
		slog.String("root", suiteRoot),
	)
	if strings.TrimSpace(suiteRoot) == "" {
		return nil, errors.New("suite root is required")
	}
	if err := os.MkdirAll(filepath.Join(suiteRoot, IndexDirName), 0o755); err != nil {
		l.Error("create .mathviz dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .mathviz dir: %w", err)
	}

	path := IndexPath(suiteRoot)
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	uriPath := filepath.ToSlash(path)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Set reasonable connection pool limits for embedded usage.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	// Seed or update single-row version info
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Update app and timestamp only; keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// Add lookup indexes for per-script queries and optimize FTS
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_documents_script ON documents(script_id);`,
				`CREATE INDEX IF NOT EXISTS idx_documents_section ON documents(script_id, section_id);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
			// Best-effort FTS optimize (outside the tx)
			if _, err := db.ExecContext(ctx, `INSERT INTO fts_documents(fts_documents) VALUES('optimize')`); err != nil {
				// ignore
			}
		default:
			// Unknown future step
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates core index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// Core documents table: script titles, learning objectives, narration lines.
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id     INTEGER PRIMARY KEY,
			kind       TEXT    NOT NULL,
			path       TEXT    NOT NULL,
			script_id  TEXT    NOT NULL,
			section_id TEXT,
			line_id    TEXT,
			text       TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);`,

		// External-content FTS5 index over documents.text, kept in sync via
		// triggers. External content keeps snippet() working for search hits.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_documents USING fts5(
			text,
			content='documents',
			content_rowid='doc_id',
			tokenize = 'unicode61'
		);`,

		// Previews cache (waveform thumbnails, see internal/render)
		`CREATE TABLE IF NOT EXISTS previews (
			id          INTEGER PRIMARY KEY,
			script_id   TEXT    NOT NULL,
			w           INTEGER NOT NULL DEFAULT 0,
			h           INTEGER NOT NULL DEFAULT 0,
			png_blob    BLOB,
			size        INTEGER NOT NULL DEFAULT 0,
			updated_at  TEXT    NOT NULL,
			last_access TEXT
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_previews_variant ON previews(script_id, w, h);`,
		`CREATE INDEX IF NOT EXISTS idx_previews_access ON previews(last_access);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	// Triggers for contentless FTS synchronization with documents.text
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
			INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
			INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE OF text ON documents BEGIN
			INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
			INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// BuildIndexIfEmpty ensures the DB exists and, if the documents table is
// empty, populates it from the registered scripts.
func BuildIndexIfEmpty(ctx context.Context, suiteRoot string, reg *script.Registry) error {
	db, err := InitOrOpenIndex(suiteRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents;").Scan(&cnt); err != nil {
		return fmt.Errorf("check documents count: %w", err)
	}
	if cnt > 0 {
		return nil // already built
	}
	return rebuildDocumentsFromRegistry(ctx, db, reg)
}

// UpdateIndex replaces the documents content from the given registry.
func UpdateIndex(ctx context.Context, suiteRoot string, reg *script.Registry) error {
	db, err := InitOrOpenIndex(suiteRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	return rebuildDocumentsFromRegistry(ctx, db, reg)
}

// RebuildIndex drops and recreates core index tables and rebuilds content from
// the registry. It preserves meta/version tables; the index is derived data.
func RebuildIndex(ctx context.Context, suiteRoot string, reg *script.Registry) error {
	db, err := InitOrOpenIndex(suiteRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TABLE IF EXISTS previews;",
		"DROP TRIGGER IF EXISTS documents_ai;",
		"DROP TRIGGER IF EXISTS documents_ad;",
		"DROP TRIGGER IF EXISTS documents_au;",
		"DROP TABLE IF EXISTS documents;",
		"DROP TABLE IF EXISTS fts_documents;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	return rebuildDocumentsFromRegistry(ctx, db, reg)
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds
// the index if needed. It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, suiteRoot string, reg *script.Registry) (bool, error) {
	path := IndexPath(suiteRoot)
	db, err := InitOrOpenIndex(suiteRoot)
	if err != nil {
		backupIndexFile(path)
		_ = os.Remove(path)
		if rbErr := RebuildIndex(ctx, suiteRoot, reg); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	defer db.Close()
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM documents LIMIT 1;`); err != nil {
			needs = true
		}
	}
	if !needs {
		return false, nil
	}
	backupIndexFile(path)
	_ = os.Remove(path)
	if err := RebuildIndex(ctx, suiteRoot, reg); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in .mathviz/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

// rebuildDocumentsFromRegistry replaces the documents table content from the
// registered scripts: script and section titles plus every narration line
// (text and formula when present).
func rebuildDocumentsFromRegistry(ctx context.Context, db *sql.DB, reg *script.Registry) error {
	type row struct {
		kind      string
		path      string
		scriptID  string
		sectionID sql.NullString
		lineID    sql.NullString
		text      string
	}
	rows := make([]row, 0, 256)
	if reg != nil {
		for _, id := range reg.IDs() {
			sc, err := reg.Get(id)
			if err != nil {
				continue
			}
			base := "script:" + sc.ID
			if s := strings.TrimSpace(sc.Title); s != "" {
				rows = append(rows, row{kind: "script_title", path: base + "/title", scriptID: sc.ID, text: s})
			}
			for _, sec := range sc.Sections {
				secPath := base + "/section:" + sec.ID
				secID := sql.NullString{String: sec.ID, Valid: true}
				if s := strings.TrimSpace(sec.Title); s != "" {
					rows = append(rows, row{kind: "section_title", path: secPath + "/title", scriptID: sc.ID, sectionID: secID, text: s})
				}
				for _, ln := range sec.Lines {
					text := strings.TrimSpace(ln.Text)
					if f := strings.TrimSpace(ln.Formula); f != "" {
						if text != "" {
							text += " "
						}
						text += f
					}
					if text == "" {
						continue
					}
					rows = append(rows, row{
						kind:      "line",
						path:      secPath + "/line:" + ln.ID,
						scriptID:  sc.ID,
						sectionID: secID,
						lineID:    sql.NullString{String: ln.ID, Valid: true},
						text:      text,
					})
				}
			}
		}
	}
	// Write in a transaction: clear documents and insert new rows.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear documents: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO documents(kind, path, script_id, section_id, line_id, text) VALUES(?,?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, r := range rows {
		if _, err := ins.ExecContext(ctx, r.kind, r.path, r.scriptID, r.sectionID, r.lineID, r.text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
