/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SearchQuery describes the in-app search request.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Filters are optional. Kinds can restrict to: script_title, section_title,
// line. Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text      string
	ScriptID  string
	SectionID string
	Kinds     []string
	Limit     int
	Offset    int
}

// SearchResult represents a single match row.
// Snippet is an optional highlighted excerpt using [ ] markers when FTS text
// is used. SectionID/LineID are empty for script-level rows.
type SearchResult struct {
	DocID     int64
	Kind      string
	Path      string
	ScriptID  string
	SectionID string
	LineID    string
	Snippet   string
}

// Search performs full-text search with optional filters over the embedded index.
// When q.Text is empty, it falls back to a non-FTS scan over documents with
// filters applied.
func Search(ctx context.Context, suiteRoot string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(suiteRoot) == "" {
		return nil, errors.New("suite root is required")
	}
	db, err := InitOrOpenIndex(suiteRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		sb.WriteString("SELECT d.doc_id, d.kind, d.path, d.script_id, COALESCE(d.section_id,''), COALESCE(d.line_id,''), snippet(fts_documents, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_documents JOIN documents d ON fts_documents.rowid = d.doc_id\n")
		sb.WriteString("WHERE fts_documents MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT d.doc_id, d.kind, d.path, d.script_id, COALESCE(d.section_id,''), COALESCE(d.line_id,''), ''\n")
		sb.WriteString("FROM documents d\nWHERE 1=1\n")
	}
	if len(q.Kinds) > 0 {
		sb.WriteString(" AND d.kind IN (" + placeholders(len(q.Kinds)) + ")\n")
		for _, k := range q.Kinds {
			args = append(args, k)
		}
	}
	if s := strings.TrimSpace(q.ScriptID); s != "" {
		sb.WriteString(" AND d.script_id = ?\n")
		args = append(args, s)
	}
	if s := strings.TrimSpace(q.SectionID); s != "" {
		sb.WriteString(" AND d.section_id = ?\n")
		args = append(args, s)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY d.script_id, d.doc_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.DocID, &r.Kind, &r.Path, &r.ScriptID, &r.SectionID, &r.LineID, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}
