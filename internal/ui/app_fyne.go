//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"mathviz/internal/audio"
	"mathviz/internal/backend"
	"mathviz/internal/config"
	"mathviz/internal/crash"
	"mathviz/internal/history"
	applog "mathviz/internal/log"
	"mathviz/internal/presenter"
	"mathviz/internal/render"
	"mathviz/internal/scene"
	"mathviz/internal/script"
	"mathviz/internal/version"
)

const defaultScriptsDir = "assets/scripts"

// fyneView bridges presenter output onto the Fyne main thread.
type fyneView struct {
	text     *widget.Label
	formula  *widget.Label
	progress *widget.ProgressBar
	status   *widget.Label
}

func (v *fyneView) ShowFrame(f presenter.Frame) {
	fyne.Do(func() {
		v.text.SetText(f.Text)
		v.formula.SetText(f.Formula)
		v.progress.SetValue(f.Progress)
		if f.Paused {
			v.status.SetText(fmt.Sprintf("Paused at %s/%s", f.SectionID, f.LineID))
		} else {
			v.status.SetText(fmt.Sprintf("Playing %s/%s", f.SectionID, f.LineID))
		}
	})
}

func (v *fyneView) Highlight(target string) {
	fyne.Do(func() { v.status.SetText("Highlight: " + target) })
}

func (v *fyneView) ScrollTo(target string) {
	fyne.Do(func() { v.status.SetText("Scroll to: " + target) })
}

// Run starts the Fyne-based desktop presenter.
func Run(scriptsDir string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	sess := &crash.Session{}
	defer func() { crash.Recover(sess) }()

	cfg, _, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	if scriptsDir == "" {
		scriptsDir = defaultScriptsDir
	}
	reg := script.NewRegistry()
	if err := reg.LoadDir(scriptsDir); err != nil {
		return fmt.Errorf("load scripts from %s: %w", scriptsDir, err)
	}
	if reg.Len() == 0 {
		return fmt.Errorf("no scripts found under %s", scriptsDir)
	}

	store := scene.NewStore(scene.State{WaveType: "sine", Frequency: 1, Amplitude: 1, Terms: 1})
	lib := audio.NewLibrary(cfg.Audio.Dir, cfg.Audio.Voice)
	hist := history.NewManager(history.Config{
		MaxBytes:         4 * 1024 * 1024,
		MaxPerExperiment: 50,
		MinInterval:      300 * time.Millisecond,
	})

	fyneApp := app.NewWithID("mathviz")
	w := fyneApp.NewWindow("MathViz Presenter")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1100)
	winH := prefs.IntWithFallback("window.height", 720)
	if winW < 800 {
		winW = 800
	}
	if winH < 560 {
		winH = 560
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	narration := widget.NewLabel("")
	narration.Wrapping = fyne.TextWrapWord
	formula := widget.NewLabel("")
	formula.TextStyle = fyne.TextStyle{Monospace: true}
	progress := widget.NewProgressBar()

	view := &fyneView{text: narration, formula: formula, progress: progress, status: status}
	pres := presenter.New(presenter.Config{
		Registry: reg,
		Scene:    store,
		View:     view,
		Audio:    lib,
		Rate:     cfg.Audio.PlaybackRate,
	})
	defer pres.Close()

	// Waveform canvas redrawn on every scene change.
	waveImg := canvas.NewImageFromImage(render.Waveform(store.Read(), render.Options{Width: 640, Height: 360}))
	waveImg.FillMode = canvas.ImageFillContain
	waveImg.SetMinSize(fyne.NewSize(480, 280))
	unsub := store.Subscribe(func(_, cur scene.State) {
		fyne.Do(func() {
			waveImg.Image = render.Waveform(cur, render.Options{Width: 640, Height: 360})
			waveImg.Refresh()
		})
	})
	defer unsub()

	// Script picker (left)
	ids := reg.IDs()
	current := ids[0]
	titles := make([]string, len(ids))
	for i, id := range ids {
		s, _ := reg.Get(id)
		titles[i] = s.Title
	}
	scriptList := widget.NewList(
		func() int { return len(titles) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) { o.(*widget.Label).SetText(titles[i]) },
	)
	scriptList.OnSelected = func(i widget.ListItemID) {
		current = ids[i]
		sess.ScriptID = current
		l.Info("script selected", slog.String("script", current))
	}
	scriptList.Select(0)

	// Playback controls
	playBtn := widget.NewButton("Play", func() {
		_ = pres.Exit()
		if err := pres.Start(current); err != nil {
			status.SetText("Error: " + err.Error())
		}
	})
	pauseBtn := widget.NewButton("Pause", func() { _ = pres.Pause() })
	resumeBtn := widget.NewButton("Resume", func() { _ = pres.Resume() })
	backBtn := widget.NewButton("Back", func() { _ = pres.Back() })
	advanceBtn := widget.NewButton("Advance", func() { _ = pres.Advance() })
	exitBtn := widget.NewButton("Exit", func() {
		_ = pres.Exit()
		status.SetText("Ready")
	})
	rateSlider := widget.NewSlider(0.25, 4)
	rateSlider.Step = 0.25
	rateSlider.Value = cfg.Audio.PlaybackRate
	if rateSlider.Value == 0 {
		rateSlider.Value = 1
	}
	rateSlider.OnChanged = func(v float64) { pres.SetRate(v) }

	// Interactive parameter controls; user edits go through the same store
	// as scripted actions and are recorded for undo.
	pushHistory := func() {
		hist.PushSnapshot(history.Snapshot{Experiment: current, State: store.Read(), TS: time.Now()})
	}
	freqSlider := widget.NewSlider(0.25, 8)
	freqSlider.Step = 0.25
	freqSlider.Value = 1
	freqSlider.OnChanged = func(v float64) {
		pushHistory()
		store.Apply(scene.Patch{Frequency: &v})
	}
	ampSlider := widget.NewSlider(0.1, 2)
	ampSlider.Step = 0.1
	ampSlider.Value = 1
	ampSlider.OnChanged = func(v float64) {
		pushHistory()
		store.Apply(scene.Patch{Amplitude: &v})
	}
	termsSlider := widget.NewSlider(1, 40)
	termsSlider.Step = 1
	termsSlider.Value = 1
	termsSlider.OnChanged = func(v float64) {
		pushHistory()
		n := int(v)
		store.Apply(scene.Patch{Terms: &n})
	}
	undoBtn := widget.NewButton("Undo", func() {
		if snap, ok := hist.Undo(current); ok {
			store.Restore(snap.State)
		}
	})
	redoBtn := widget.NewButton("Redo", func() {
		if snap, ok := hist.Redo(current); ok {
			store.Restore(snap.State)
		}
	})

	reportBtn := widget.NewButton("Report Issue", func() {
		st := pres.State()
		entry := widget.NewMultiLineEntry()
		entry.SetPlaceHolder("What is wrong with this line?")
		dialog.ShowCustomConfirm("Report narration issue", "Send", "Cancel", entry, func(send bool) {
			if !send || entry.Text == "" {
				return
			}
			go func() {
				client := backend.NewClient(cfg.Backend.BaseURL, "")
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if _, err := client.FetchToken(ctx, "app", time.Hour); err != nil {
					l.Warn("token fetch failed", slog.Any("err", err))
					return
				}
				if _, err := client.SubmitReport(ctx, st.ScriptID, st.SectionID, st.LineID, "content", entry.Text, version.String()); err != nil {
					l.Warn("report submit failed", slog.Any("err", err))
					fyne.Do(func() { status.SetText("Report failed: " + err.Error()) })
					return
				}
				fyne.Do(func() { status.SetText("Report sent, thanks") })
			}()
		}, w)
	})

	controls := container.NewHBox(playBtn, pauseBtn, resumeBtn, backBtn, advanceBtn, exitBtn, reportBtn)
	params := container.NewVBox(
		widget.NewLabel("Rate"), rateSlider,
		widget.NewLabel("Frequency"), freqSlider,
		widget.NewLabel("Amplitude"), ampSlider,
		widget.NewLabel("Terms"), termsSlider,
		container.NewHBox(undoBtn, redoBtn),
	)
	left := container.NewBorder(widget.NewLabel("Experiments"), nil, nil, nil, scriptList)
	center := container.NewBorder(nil, container.NewVBox(narration, formula, progress, controls), nil, nil, waveImg)
	content := container.NewBorder(nil, status, left, params, center)
	w.SetContent(content)

	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})

	w.ShowAndRun()
	return nil
}
