/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash /*
package crash

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "mathviz/internal/log"
	"mathviz/internal/telemetry"
	"mathviz/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Session describes where the viewer was when the process went down.
// Recover writes it next to the crash report so the next run can offer
// to resume at the same narration line.
type Session struct {
	Dir       string `json:"-"`
	ScriptID  string `json:"script_id"`
	SectionID string `json:"section_id,omitempty"`
	LineID    string `json:"line_id,omitempty"`
}

// Recover captures a panic, logs an error with stacktrace, writes an error
// report file, and persists a resume snapshot of the playback position
// (if provided).
//
// Usage: defer func(){ crash.Recover(sess) }()
func Recover(sess *Session) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, _ := writeReport(sess, r, stack)
		if sess != nil && sess.ScriptID != "" {
			if path, err := writeResume(sess); err != nil {
				l.Error("resume snapshot failed", slog.Any("err", err))
			} else {
				l.Info("resume snapshot written", slog.String("path", path))
			}
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		// Exit with a non-zero code to indicate failure in CLI context.
		exitFn(2)
	}
}

// ResumeFileName is the snapshot written beside crash reports.
const ResumeFileName = "resume.json"

func reportDir(sess *Session) string {
	if sess != nil && sess.Dir != "" {
		_ = os.MkdirAll(sess.Dir, 0o755)
		return sess.Dir
	}
	return os.TempDir()
}

func writeResume(sess *Session) (string, error) {
	path := filepath.Join(reportDir(sess), ResumeFileName)
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return path, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return path, err
	}
	return path, nil
}

// ReadResume loads a previously written resume snapshot, if any.
func ReadResume(dir string) (*Session, error) {
	data, err := os.ReadFile(filepath.Join(dir, ResumeFileName))
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s.Dir = dir
	return &s, nil
}

func writeReport(sess *Session, panicVal any, stack []byte) (string, error) {
	stamp := time.Now().Format("20060102-150405")
	fname := fmt.Sprintf("crash-%s.log", stamp)
	path := filepath.Join(reportDir(sess), fname)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "MathViz Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if sess != nil {
		_, _ = fmt.Fprintf(&buf, "Script: %s\n", sess.ScriptID)
		_, _ = fmt.Fprintf(&buf, "Position: %s/%s\n", sess.SectionID, sess.LineID)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	// write to file
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()

	// optionally upload anonymized crash report (opt-in via env)
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
