package db

import (
	"path/filepath"
	"testing"
)

func TestInitDB_CreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mold.db")
	db, err := InitDB(path)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer db.Close()

	for _, s := range schema {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, s.table).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", s.table, err)
		}
	}

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil || mode != "wal" {
		t.Fatalf("journal_mode = %q, %v", mode, err)
	}
}

func TestInitDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mold.db")
	for i := 0; i < 2; i++ {
		db, err := InitDB(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if i == 0 {
			if _, err := db.Exec(`INSERT INTO operators (username, password_hash) VALUES ('setter', 'h')`); err != nil {
				t.Fatalf("insert: %v", err)
			}
		} else {
			var n int
			if err := db.QueryRow(`SELECT COUNT(*) FROM operators`).Scan(&n); err != nil || n != 1 {
				t.Fatalf("operators after reopen: %d, %v", n, err)
			}
		}
		_ = db.Close()
	}
}

func TestInitDB_BadPath(t *testing.T) {
	if _, err := InitDB(filepath.Join(t.TempDir(), "missing", "dir", "mold.db")); err == nil {
		t.Fatal("expected an error for an unwritable path")
	}
}
