/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"mathviz/internal/script"
)

func testRegistry(t *testing.T) *script.Registry {
	t.Helper()
	reg := script.NewRegistry()
	scripts := []*script.Script{
		{
			ID:    "fourier-basics",
			Title: "Fourier Series Basics",
			Sections: []script.Section{
				{
					ID:    "intro",
					Title: "Introduction",
					Lines: []script.Line{
						{ID: "l1", Text: "Every periodic signal decomposes into sine waves."},
						{ID: "l2", Text: "Watch the square wave emerge.", Formula: "f(t) = 4/pi * sum(sin((2k-1)wt)/(2k-1))"},
					},
				},
			},
		},
		{
			ID:    "harmonics",
			Title: "Higher Harmonics",
			Sections: []script.Section{
				{
					ID: "s1",
					Lines: []script.Line{
						{ID: "l1", Text: "Adding harmonics sharpens the edges."},
					},
				},
			},
		},
	}
	for _, s := range scripts {
		if err := reg.Register(s); err != nil {
			t.Fatalf("Register %s: %v", s.ID, err)
		}
	}
	return reg
}

func TestIndexInitCreatesWALAndMetaVersion(t *testing.T) {
	root := t.TempDir()
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex error: %v", err)
	}
	defer db.Close()
	if _, err := os.Stat(IndexPath(root)); err != nil {
		t.Fatalf("index file missing at %s: %v", IndexPath(root), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" && mode != "WAL" {
		t.Fatalf("expected WAL mode, got %s", mode)
	}
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('meta','version')").Scan(&cnt); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if cnt != 2 {
		t.Fatalf("expected 2 meta tables, got %d", cnt)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('documents','fts_documents','previews')").Scan(&cnt); err != nil {
		t.Fatalf("query core tables: %v", err)
	}
	if cnt != 3 {
		t.Fatalf("expected 3 core tables, got %d", cnt)
	}
	var schema int
	if err := db.QueryRowContext(ctx, "SELECT schema FROM version WHERE id=1").Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("expected schema %d after migrations, got %d", schemaVersion, schema)
	}
}

func TestFTSTriggersFollowDocuments(t *testing.T) {
	root := t.TempDir()
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex error: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, `INSERT INTO documents(doc_id, kind, path, script_id, text) VALUES(10001,'line','script:x/section:s/line:l','x','hello world');`); err != nil {
		t.Fatalf("insert document: %v", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fts_documents WHERE fts_documents MATCH 'hello'").Scan(&n); err != nil {
		t.Fatalf("fts query: %v", err)
	}
	if n == 0 {
		t.Fatalf("expected FTS to find inserted document")
	}
	if _, err := db.ExecContext(ctx, `UPDATE documents SET text='goodbye moon' WHERE doc_id=10001`); err != nil {
		t.Fatalf("update document: %v", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fts_documents WHERE fts_documents MATCH 'hello'").Scan(&n); err != nil {
		t.Fatalf("fts query after update: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected stale term to be gone, got %d matches", n)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM documents WHERE doc_id=10001`); err != nil {
		t.Fatalf("delete document: %v", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fts_documents WHERE fts_documents MATCH 'goodbye'").Scan(&n); err != nil {
		t.Fatalf("fts query after delete: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected deleted document out of FTS, got %d matches", n)
	}
}

func TestBuildIndexIfEmptyPopulatesOnce(t *testing.T) {
	root := t.TempDir()
	reg := testRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := BuildIndexIfEmpty(ctx, root, reg); err != nil {
		t.Fatalf("BuildIndexIfEmpty: %v", err)
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&cnt); err != nil {
		t.Fatalf("count: %v", err)
	}
	// 2 script titles + 1 section title + 3 lines
	if cnt != 6 {
		t.Fatalf("expected 6 documents, got %d", cnt)
	}
	// A second call must not duplicate rows.
	if err := BuildIndexIfEmpty(ctx, root, reg); err != nil {
		t.Fatalf("BuildIndexIfEmpty again: %v", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&cnt); err != nil {
		t.Fatalf("count again: %v", err)
	}
	if cnt != 6 {
		t.Fatalf("expected 6 documents after rebuild check, got %d", cnt)
	}
}

func TestDetectAndRebuildIndexOnCorruption(t *testing.T) {
	root := t.TempDir()
	reg := testRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := BuildIndexIfEmpty(ctx, root, reg); err != nil {
		t.Fatalf("BuildIndexIfEmpty: %v", err)
	}
	// Clobber the database file.
	if err := os.WriteFile(IndexPath(root), []byte("not a database"), 0o644); err != nil {
		t.Fatalf("clobber: %v", err)
	}
	rebuilt, err := DetectAndRebuildIndex(ctx, root, reg)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if !rebuilt {
		t.Fatalf("expected a rebuild")
	}
	res, err := Search(ctx, root, SearchQuery{Text: "harmonics"})
	if err != nil {
		t.Fatalf("Search after rebuild: %v", err)
	}
	if len(res) == 0 {
		t.Fatalf("expected results after rebuild")
	}
}
