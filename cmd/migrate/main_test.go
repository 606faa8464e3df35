package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseMigrationFile(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantOK      bool
		wantVersion int
		wantName    string
	}{
		{"valid", "0001_create_documents.sql", true, 1, "create_documents"},
		{"valid multi-word", "0012_add_recurring_definitions.sql", true, 12, "add_recurring_definitions"},
		{"missing version", "create_documents.sql", false, 0, ""},
		{"short version", "001_create.sql", false, 0, ""},
		{"wrong extension", "0001_create_documents.txt", false, 0, ""},
		{"readme", "README.md", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok, err := parseMigrationFile(tt.filename)
			if err != nil {
				t.Fatalf("parseMigrationFile(%q) error: %v", tt.filename, err)
			}
			if ok != tt.wantOK {
				t.Fatalf("parseMigrationFile(%q) ok = %v, want %v", tt.filename, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if m.Version != tt.wantVersion {
				t.Errorf("Version = %d, want %d", m.Version, tt.wantVersion)
			}
			if m.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", m.Name, tt.wantName)
			}
			if m.Filename != tt.filename {
				t.Errorf("Filename = %q, want %q", m.Filename, tt.filename)
			}
		})
	}
}

func TestSubstitutePlaceholders(t *testing.T) {
	sql := "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.documents` (id STRING)"
	got := substitutePlaceholders(sql, "my-project", "homeledger")
	want := "CREATE TABLE `my-project.homeledger.documents` (id STRING)"
	if got != want {
		t.Errorf("substitutePlaceholders = %q, want %q", got, want)
	}
}

func TestLoadMigrations(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// Written out of version order on purpose.
	write("0002_categories.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.categories` (id STRING)")
	write("0001_documents.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.documents` (id STRING)")
	write("notes.txt", "not a migration")

	migrations, err := loadMigrations(dir, "proj", "ds")
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("migrations not sorted by version: %d, %d", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].SQL != "CREATE TABLE `proj.ds.documents` (id STRING)" {
		t.Errorf("placeholders not substituted: %q", migrations[0].SQL)
	}
	if migrations[0].Checksum == "" || migrations[0].Checksum == migrations[1].Checksum {
		t.Errorf("checksums not computed per file: %q vs %q", migrations[0].Checksum, migrations[1].Checksum)
	}
}

func TestLoadMigrationsMissingDir(t *testing.T) {
	if _, err := loadMigrations(filepath.Join(t.TempDir(), "nope"), "proj", "ds"); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
