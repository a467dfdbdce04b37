package storage

import (
	"path/filepath"
	"testing"
)

func TestOpenSqliteArchiveCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "scribe.db")

	archive, err := OpenSqliteArchive(path, nil)
	if err != nil {
		t.Fatalf("OpenSqliteArchive failed: %v", err)
	}
	defer archive.Close()

	if _, err := archive.CreateHistory("persisted", sampleTurns()); err != nil {
		t.Fatalf("CreateHistory failed: %v", err)
	}
}

func TestSqliteArchiveSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.db")

	archive, err := OpenSqliteArchive(path, nil)
	if err != nil {
		t.Fatalf("OpenSqliteArchive failed: %v", err)
	}
	created, err := archive.CreateHistory("durable", sampleTurns())
	if err != nil {
		t.Fatalf("CreateHistory failed: %v", err)
	}
	if err := archive.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenSqliteArchive(path, nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.GetHistory(created.ID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("session did not survive reopen")
	}
	if loaded.Name != "durable" || len(loaded.Contents) != 3 {
		t.Errorf("loaded = %+v", loaded)
	}
}
