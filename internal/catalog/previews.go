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
	"os"
	"strconv"
	"time"
)

// GetPreview returns the PNG bytes for a waveform thumbnail of the given
// script at the requested size and updates last_access. A nil slice with nil
// error means no cached preview exists.
func GetPreview(ctx context.Context, suiteRoot, scriptID string, w, h int) ([]byte, error) {
	db, err := InitOrOpenIndex(suiteRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	var blob []byte
	err = db.QueryRowContext(ctx, `SELECT png_blob FROM previews WHERE script_id=? AND w=? AND h=?`, scriptID, w, h).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preview: %w", err)
	}
	// touch
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, _ = db.ExecContext(ctx, `UPDATE previews SET last_access=? WHERE script_id=? AND w=? AND h=?`, now, scriptID, w, h)
	return blob, nil
}

// PutPreview upserts a thumbnail blob and enforces the cache size cap via LRU
// eviction.
func PutPreview(ctx context.Context, suiteRoot, scriptID string, w, h int, blob []byte) error {
	db, err := InitOrOpenIndex(suiteRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = db.ExecContext(ctx, `INSERT INTO previews(script_id,w,h,png_blob,size,updated_at,last_access)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(script_id,w,h) DO UPDATE SET png_blob=excluded.png_blob, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		scriptID, w, h, blob, len(blob), now, now)
	if err != nil {
		return fmt.Errorf("upsert preview: %w", err)
	}
	capBytes := MaxPreviewsBytesFromEnv()
	if capBytes > 0 {
		if err := EvictPreviewsToFit(ctx, db, capBytes); err != nil {
			return err
		}
	}
	return nil
}

// GetOrCreatePreview fetches a preview or generates and stores it using the
// provided generator.
func GetOrCreatePreview(ctx context.Context, suiteRoot, scriptID string, w, h int, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := GetPreview(ctx, suiteRoot, scriptID, w, h); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	if gen == nil {
		return nil, nil
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	if err := PutPreview(ctx, suiteRoot, scriptID, w, h, data); err != nil {
		return nil, err
	}
	return data, nil
}

// EvictPreviewsToFit deletes least-recently-used rows until total size <= capBytes.
func EvictPreviewsToFit(ctx context.Context, db *sql.DB, capBytes int64) error {
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total); err != nil {
		return fmt.Errorf("sum previews size: %w", err)
	}
	if total <= capBytes {
		return nil
	}
	// Victims ordered by last_access asc (oldest first), NULLs first
	rows, err := db.QueryContext(ctx, `SELECT id, size FROM previews ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	toDelete := make([]int64, 0, 32)
	cur := total
	for rows.Next() {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		toDelete = append(toDelete, id)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// Important: close the rows cursor before attempting to write
	if err := rows.Close(); err != nil {
		return err
	}
	if len(toDelete) == 0 {
		return nil
	}
	del := `DELETE FROM previews WHERE id IN (` + placeholders(len(toDelete)) + `)`
	args := make([]any, len(toDelete))
	for i, v := range toDelete {
		args[i] = v
	}
	if _, err := db.ExecContext(ctx, del, args...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	return nil
}

// TotalPreviewBytes returns total bytes tracked by previews.size.
func TotalPreviewBytes(ctx context.Context, suiteRoot string) (int64, error) {
	db, err := InitOrOpenIndex(suiteRoot)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// MaxPreviewsBytesFromEnv reads MVZ_PREVIEWS_MAX_BYTES, defaulting to 64MB if unset.
func MaxPreviewsBytesFromEnv() int64 {
	v := os.Getenv("MVZ_PREVIEWS_MAX_BYTES")
	if v == "" {
		return 64 * 1024 * 1024
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 64 * 1024 * 1024
	}
	return n
}
