/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("MVZ_TELEMETRY_OPT_IN", "")
	t.Setenv("MVZ_TELEMETRY_URL", "")
	t.Setenv("MVZ_CRASH_UPLOAD_URL", "")
	t.Setenv("MVZ_TELEMETRY_TIMEOUT_MS", "")
	cfg := FromEnv()
	if cfg.OptIn {
		t.Fatalf("telemetry must default to opt-out")
	}
	if cfg.Timeout != 1500*time.Millisecond {
		t.Fatalf("unexpected default timeout: %v", cfg.Timeout)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MVZ_TELEMETRY_OPT_IN", "yes")
	t.Setenv("MVZ_TELEMETRY_URL", "http://example.invalid/events")
	t.Setenv("MVZ_TELEMETRY_TIMEOUT_MS", "250")
	cfg := FromEnv()
	if !cfg.OptIn {
		t.Fatalf("expected opt-in")
	}
	if cfg.EventsURL != "http://example.invalid/events" {
		t.Fatalf("unexpected events url: %q", cfg.EventsURL)
	}
	if cfg.Timeout != 250*time.Millisecond {
		t.Fatalf("unexpected timeout: %v", cfg.Timeout)
	}
}

func TestEventDisabledIsNoop(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	c.Event("app_start", nil)
	c.Flush(context.Background())
	if hits != 0 {
		t.Fatalf("disabled client must not send, got %d hits", hits)
	}
}

func TestContentIssueCarriesPosition(t *testing.T) {
	var mu sync.Mutex
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		_ = json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	c := New(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	c.ContentIssue("malformed_action", "fourier", "intro", "l1", "unknown action type")
	c.Flush(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		ok := got != nil
		mu.Unlock()
		if ok || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if got == nil {
		t.Fatalf("no event received")
	}
	if got["name"] != "content_issue" || got["script"] != "fourier" || got["line"] != "l1" {
		t.Fatalf("unexpected payload: %v", got)
	}
}

func TestUploadCrashPostsBody(t *testing.T) {
	ch := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		select {
		case ch <- body:
		default:
		}
	}))
	defer srv.Close()

	c := New(Config{OptIn: true, CrashURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	c.UploadCrash([]byte("panic: boom"))

	select {
	case body := <-ch:
		if string(body) != "panic: boom" {
			t.Fatalf("unexpected body: %q", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("crash upload not received")
	}
}
