package main

import (
	"io/fs"
	"testing"
	"testing/fstest"
)

func TestGetNextMigrationNum(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files []string
		want  int
	}{
		{name: "empty", want: 1},
		{name: "one", files: []string{"000001_init.sql"}, want: 2},
		{name: "gap", files: []string{"000001_init.sql", "000004_trainers.sql"}, want: 5},
		{name: "ignores non sql", files: []string{"000001_init.sql", "000009_notes.md", "README"}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fsys := fstest.MapFS{}
			for _, f := range tt.files {
				fsys[f] = &fstest.MapFile{}
			}
			entries, err := fs.ReadDir(fsys, ".")
			if err != nil {
				t.Fatalf("ReadDir() error = %v", err)
			}

			if got := getNextMigrationNum(entries); got != tt.want {
				t.Errorf("getNextMigrationNum() = %d, want %d", got, tt.want)
			}
		})
	}
}
