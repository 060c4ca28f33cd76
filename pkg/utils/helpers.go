package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//InSlice returns true if given string appears in given slice
func InSlice(lookingFor string, slice []string) bool {
	for _, s := range slice {
		if s == lookingFor {
			return true
		}
	}

	return false
}

//ListDir returns the names of the regular files in given path. A non-empty ext keeps only names with that extension
//(without the dot, case insensitive).
func ListDir(path, ext string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("ListDir: Error, got '%v'", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext != "" && !strings.EqualFold(strings.TrimPrefix(filepath.Ext(e.Name()), "."), ext) {
			continue
		}
		names = append(names, e.Name())
	}

	return names, nil
}

//EnsureDirs creates every missing directory in dirs, parents included
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0766); err != nil {
			return fmt.Errorf("EnsureDirs: Error creating '%s', got '%v'", dir, err)
		}
	}
	return nil
}
