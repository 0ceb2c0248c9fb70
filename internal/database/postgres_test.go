package database

import (
	"testing"
	"testing/fstest"
)

func TestListMigrations_OrderedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_turn_index.sql":    {Data: []byte("SELECT 1;")},
		"migrations/001_conversations.sql": {Data: []byte("SELECT 1;")},
		"migrations/readme.sql":            {Data: []byte("-- notes")},
		"migrations/x.sql":                 {Data: []byte("")},
	}

	got, err := listMigrations(fsys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(got))
	}
	if got[0].version != 1 || got[1].version != 2 {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := listMigrations(migrationFiles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) == 0 || got[0].path != "migrations/001_conversations.sql" {
		t.Fatalf("expected the conversations migration to be embedded, got %+v", got)
	}
}
