/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mathviz/internal/audio"
	"mathviz/internal/catalog"
	"mathviz/internal/config"
	"mathviz/internal/crash"
	"mathviz/internal/export"
	applog "mathviz/internal/log"
	"mathviz/internal/presenter"
	"mathviz/internal/render"
	"mathviz/internal/scene"
	"mathviz/internal/script"
	"mathviz/internal/ui"
	"mathviz/internal/version"
)

const defaultScriptsDir = "assets/scripts"

func usage() {
	fmt.Println("MathViz — narration presenter for math experiments")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mathviz version|-v|--version                Show version")
	fmt.Println("  mathviz list [<dir>]                        List narration scripts under <dir>")
	fmt.Println("  mathviz validate <file>                     Check a narration script for authoring mistakes")
	fmt.Println("  mathviz compile <in.txt> <out.json>         Compile the plain-text authoring format to JSON")
	fmt.Println("  mathviz play <dir> <script-id> [--voice= --rate=]  Play a script headless, narration on stdout")
	fmt.Println("  mathviz export <dir> <script-id> <out.pdf>  Write a transcript PDF")
	fmt.Println("  mathviz search <dir> <query>                Full-text search across indexed scripts")
	fmt.Println("  mathviz ui [<dir>]                          Launch desktop UI (build with -tags fyne for full UI)")
}

func loadRegistry(dir string) (*script.Registry, error) {
	if dir == "" {
		dir = defaultScriptsDir
	}
	reg := script.NewRegistry()
	if err := reg.LoadDir(dir); err != nil {
		return nil, err
	}
	return reg, nil
}

// consoleView prints narration frames to stdout for headless playback.
type consoleView struct{}

func (consoleView) ShowFrame(f presenter.Frame) {
	fmt.Printf("[%s] %s\n", f.SectionID, f.Text)
	if f.Formula != "" {
		fmt.Printf("      %s\n", f.Formula)
	}
}

func (consoleView) Highlight(target string) { fmt.Printf("      >> highlight %s\n", target) }
func (consoleView) ScrollTo(target string)  { fmt.Printf("      >> scroll to %s\n", target) }

func main() {
	// initialize structured logging using environment defaults
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	sess := &crash.Session{}
	defer func() { crash.Recover(sess) }()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("MathViz — narration presenter for math experiments")
			fmt.Println(version.String())
			return
		case "list":
			var dir string
			if len(args) >= 3 {
				dir = args[2]
			}
			reg, err := loadRegistry(dir)
			if err != nil {
				l.Error("list failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			for _, id := range reg.IDs() {
				s, _ := reg.Get(id)
				fmt.Printf("%-24s %s (%d sections, %d lines)\n", id, s.Title, len(s.Sections), s.TotalLines())
			}
			return
		case "validate":
			if len(args) < 3 {
				fmt.Println("validate requires <file>")
				usage()
				os.Exit(2)
			}
			path := args[2]
			s, err := loadAny(path)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			issues := script.Validate(s)
			for _, is := range issues {
				fmt.Println(is.String())
			}
			if len(issues) > 0 {
				fmt.Printf("%d issue(s) found\n", len(issues))
				os.Exit(1)
			}
			fmt.Println("OK")
			return
		case "compile":
			if len(args) < 4 {
				fmt.Println("compile requires <in.txt> and <out.json>")
				usage()
				os.Exit(2)
			}
			src, err := os.ReadFile(args[2])
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			s, errs := script.Parse(string(src))
			for _, e := range errs {
				fmt.Printf("%s:%d:%d: %s\n", args[2], e.Line, e.Column, e.Message)
			}
			if len(errs) > 0 {
				os.Exit(1)
			}
			if err := script.SaveFile(args[3], s); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println("Wrote", args[3])
			return
		case "play":
			if len(args) < 4 {
				fmt.Println("play requires <dir> and <script-id>")
				usage()
				os.Exit(2)
			}
			reg, err := loadRegistry(args[2])
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			voice, rate := "", 1.0
			for _, a := range args[4:] {
				switch {
				case strings.HasPrefix(a, "--voice="):
					voice = strings.TrimPrefix(a, "--voice=")
				case strings.HasPrefix(a, "--rate="):
					if v, err := strconv.ParseFloat(strings.TrimPrefix(a, "--rate="), 64); err == nil {
						rate = v
					}
				}
			}
			sess.ScriptID = args[3]
			if err := playHeadless(reg, args[3], voice, rate); err != nil {
				l.Error("play failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "export":
			if len(args) < 5 {
				fmt.Println("export requires <dir>, <script-id> and <out.pdf>")
				usage()
				os.Exit(2)
			}
			reg, err := loadRegistry(args[2])
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			s, err := reg.Get(args[3])
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			out := args[4]
			if strings.EqualFold(filepath.Ext(out), ".json") {
				err = export.ScriptJSON(s, out)
			} else {
				// title-page preview comes from the shared thumbnail cache
				ctx := context.Background()
				preview, perr := catalog.GetOrCreatePreview(ctx, args[2], s.ID, 480, 300, func(context.Context) ([]byte, error) {
					return render.ThumbnailPNG(scene.State{WaveType: "sine", Frequency: 1, Amplitude: 1, Terms: 8}, 480, 300)
				})
				if perr != nil {
					l.Warn("preview generation failed", slog.Any("err", perr))
				}
				err = export.TranscriptPDF(s, out, export.PDFOptions{IncludeTiming: true, PreviewPNG: preview})
			}
			if err != nil {
				l.Error("export failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println("Wrote", out)
			return
		case "search":
			if len(args) < 4 {
				fmt.Println("search requires <dir> and <query>")
				usage()
				os.Exit(2)
			}
			dir := args[2]
			reg, err := loadRegistry(dir)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ctx := context.Background()
			if err := catalog.UpdateIndex(ctx, dir, reg); err != nil {
				l.Error("index update failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			results, err := catalog.Search(ctx, dir, catalog.SearchQuery{Text: strings.Join(args[3:], " ")})
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			for _, r := range results {
				fmt.Printf("%-14s %s\n", r.Kind, r.Path)
				if r.Snippet != "" {
					fmt.Printf("      %s\n", r.Snippet)
				}
			}
			fmt.Printf("%d result(s)\n", len(results))
			return
		case "ui":
			var dir string
			if len(args) >= 3 {
				dir = args[2]
			}
			if err := ui.Run(dir); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		}
	}

	usage()
}

// loadAny reads either the JSON script format or the plain-text authoring
// format, picked by extension.
func loadAny(path string) (*script.Script, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return script.LoadFile(path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, errs := script.Parse(string(src))
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Printf("%s:%d:%d: %s\n", path, e.Line, e.Column, e.Message)
		}
		return nil, fmt.Errorf("%d parse error(s)", len(errs))
	}
	return s, nil
}

// playHeadless runs a full session on the terminal without waiting out the
// narration timings. Time is driven by a manual clock, and triggers that
// would wait on the user or the animation are advanced immediately so
// unattended playback always terminates.
func playHeadless(reg *script.Registry, id, voice string, rate float64) error {
	cfg, _, err := config.Load()
	if err != nil {
		cfg = config.Defaults()
	}
	if voice == "" {
		voice = cfg.Audio.Voice
	}
	store := scene.NewStore(scene.State{WaveType: "sine", Frequency: 1, Amplitude: 1, Terms: 1})
	clock := presenter.NewManualClock(time.Now())
	p := presenter.New(presenter.Config{
		Registry: reg,
		Scene:    store,
		View:     consoleView{},
		Audio:    audio.NewLibrary(cfg.Audio.Dir, voice),
		Clock:    clock,
		Rate:     rate,
	})
	defer p.Close()

	if err := p.Start(id); err != nil {
		return err
	}
	s, _ := reg.Get(id)
	// generous bound so a pathological script cannot spin forever
	for i := 0; i < s.TotalLines()*64+64; i++ {
		if !p.State().Active {
			return nil
		}
		if clock.Pending() > 0 {
			clock.Advance(time.Second)
			continue
		}
		if err := p.Advance(); err != nil {
			return nil
		}
	}
	return fmt.Errorf("playback did not finish (script %s may have a trigger loop)", id)
}
