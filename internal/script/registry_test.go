package script

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func twoLineScript(id string) *Script {
	return &Script{
		ID:    id,
		Title: "Test " + id,
		Sections: []Section{
			{ID: "s1", Lines: []Line{{ID: "a", Text: "first"}, {ID: "b", Text: "second"}}},
			{ID: "s2", Lines: []Line{{ID: "c", Text: "third"}}},
		},
	}
}

func TestRegistryGetAndNotFound(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(twoLineScript("fourier")); err != nil {
		t.Fatalf("register: %v", err)
	}
	s, err := r.Get("fourier")
	if err != nil || s.ID != "fourier" {
		t.Fatalf("get: %v %+v", err, s)
	}
	if _, err := r.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(twoLineScript("fourier")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(twoLineScript("fourier")); err == nil {
		t.Fatalf("expected duplicate-id error")
	}
}

func TestRegistryPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"odes", "fourier", "monte-carlo"} {
		if err := r.Register(twoLineScript(id)); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	ids := r.IDs()
	if len(ids) != 3 || ids[0] != "odes" || ids[1] != "fourier" || ids[2] != "monte-carlo" {
		t.Fatalf("order not preserved: %v", ids)
	}
}

func TestRegistryLoadDirSkipsManifests(t *testing.T) {
	dir := t.TempDir()
	if err := SaveFile(filepath.Join(dir, "fourier.json"), twoLineScript("fourier")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(`{"script_id":"fourier"}`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	r := NewRegistry()
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 script, got %d", r.Len())
	}
}

func TestScriptFindAndFlatIndex(t *testing.T) {
	s := twoLineScript("fourier")
	pos, ok := s.Find("s2", "c")
	if !ok || pos.Section != 1 || pos.Line != 0 {
		t.Fatalf("find wrong: %+v %v", pos, ok)
	}
	if _, ok := s.Find("s1", "c"); ok {
		t.Fatalf("line c is not in s1")
	}
	if got := s.FlatIndex(pos); got != 2 {
		t.Fatalf("flat index wrong: %d", got)
	}
	if s.TotalLines() != 3 {
		t.Fatalf("total lines wrong: %d", s.TotalLines())
	}
	if ln := s.At(pos); ln == nil || ln.ID != "c" {
		t.Fatalf("at wrong: %+v", ln)
	}
	if ln := s.At(Position{Section: 5}); ln != nil {
		t.Fatalf("out of range must be nil")
	}
}
