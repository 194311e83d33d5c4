package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// WorkspacePath maps a workspace name to its SQLite file under dataDir.
func WorkspacePath(dataDir, name string) string {
	return filepath.Join(dataDir, name+".sqlite")
}

// ListWorkspaces returns the workspace names found under dataDir,
// sorted. A missing data directory yields an empty list.
func ListWorkspaces(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".sqlite") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".sqlite"))
	}
	sort.Strings(names)
	return names, nil
}

// OpenWorkspace opens the named workspace under dataDir, creating the
// database file on first use.
func OpenWorkspace(dataDir, name string) (*SQLiteStore, error) {
	if name == "" {
		return nil, fmt.Errorf("workspace name must not be empty")
	}
	return Open(WorkspacePath(dataDir, name))
}
