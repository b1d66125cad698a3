package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open("", filepath.Join(t.TempDir(), "nested", "dv.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	db, err := Open(DriverModernc, filepath.Join(dir, "dv.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}
	if db.Driver() != DriverModernc {
		t.Errorf("Driver() = %q", db.Driver())
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("postgres", filepath.Join(t.TempDir(), "x.db")); err == nil {
		t.Error("unknown driver should fail")
	}
}

func TestDocuments(t *testing.T) {
	db := openTest(t)

	if _, err := db.LoadDocument(ScratchKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty store: err = %v, want ErrNotFound", err)
	}

	before := time.Now().Add(-time.Second)
	if err := db.SaveDocument(ScratchKey, "graph TD\nA"); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	if err := db.SaveDocument(ScratchKey, "graph TD\nA --> B"); err != nil {
		t.Fatalf("SaveDocument (update): %v", err)
	}
	if err := db.SaveDocument("other", "graph LR\nX"); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	doc, err := db.LoadDocument(ScratchKey)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if doc.Source != "graph TD\nA --> B" {
		t.Errorf("Source = %q", doc.Source)
	}
	if doc.UpdatedAt.Before(before) {
		t.Errorf("UpdatedAt = %v, want after %v", doc.UpdatedAt, before)
	}

	docs, err := db.Documents()
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 2 || docs[0].Key != "other" {
		t.Errorf("Documents() = %+v, want other first", docs)
	}

	if err := db.DeleteDocument("other"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := db.LoadDocument("other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted document still loads: %v", err)
	}
}

func TestSettings(t *testing.T) {
	db := openTest(t)

	if _, err := db.Setting(SettingTheme); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing setting: err = %v", err)
	}
	for _, v := range []string{"light", "dark"} {
		if err := db.SetSetting(SettingTheme, v); err != nil {
			t.Fatalf("SetSetting: %v", err)
		}
	}
	got, err := db.Setting(SettingTheme)
	if err != nil || got != "dark" {
		t.Errorf("Setting = %q, %v; want dark", got, err)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dv.db")
	db, err := Open("", path)
	if err != nil {
		t.Fatal(err)
	}
	db.SaveDocument(ScratchKey, "flowchart TD")
	db.Close()

	db, err = Open("", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	doc, err := db.LoadDocument(ScratchKey)
	if err != nil || doc.Source != "flowchart TD" {
		t.Errorf("reopened store: %+v, %v", doc, err)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	got, err := DefaultPath()
	if err != nil || got != filepath.Join("/tmp/xdg", "dv", "dv.db") {
		t.Errorf("DefaultPath() = %q, %v", got, err)
	}
}
