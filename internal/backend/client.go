/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal HTTP client for the report API. The desktop app uses
// it behind a feature flag; the CLI uses it for author triage.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing
// slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// FetchToken asks the server for a bearer token and stores it on the client.
func (c *Client) FetchToken(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	req := map[string]any{"subject": subject, "ttl_seconds": int64(ttl.Seconds())}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", req, &resp); err != nil {
		return "", err
	}
	c.Token = resp.Token
	return resp.Token, nil
}

// SubmitReport files a report against a narration position and returns the
// new report id.
func (c *Client) SubmitReport(ctx context.Context, scriptID, sectionID, lineID, category, message, appVersion string) (int64, error) {
	req := map[string]any{
		"script_id":   scriptID,
		"section_id":  sectionID,
		"line_id":     lineID,
		"category":    category,
		"message":     message,
		"app_version": appVersion,
	}
	var resp struct {
		ID json.Number `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/reports", req, &resp); err != nil {
		return 0, err
	}
	return resp.ID.Int64()
}

// ListReports returns reports, optionally filtered by script id and status.
func (c *Client) ListReports(ctx context.Context, scriptID, status string) ([]Report, error) {
	q := url.Values{}
	if scriptID != "" {
		q.Set("script_id", scriptID)
	}
	if status != "" {
		q.Set("status", status)
	}
	path := "/api/reports"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var list []Report
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetReport fetches a single report by id.
func (c *Client) GetReport(ctx context.Context, id int64) (*Report, error) {
	var rep Report
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/reports/%d", id), nil, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// SetStatus moves a report through triage.
func (c *Client) SetStatus(ctx context.Context, id int64, status string) error {
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/reports/%d/status", id), map[string]any{"status": status}, nil)
}
