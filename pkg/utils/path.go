package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	SNAPSHOT_FILENAME  = "pyro.db"
	PYRO_ROOT_DIR_NAME = ".pyrocache"
)

// Resolves the data directory, creating it when missing.
// An empty root falls back to the user home directory.
func GetPyroFullPath(rootDirPath string) (string, error) {
	if rootDirPath == "" {
		userHomeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error getting user home directory: %w", err)
		}
		rootDirPath = userHomeDir
	}

	pyroFullDirPath := filepath.Join(rootDirPath, PYRO_ROOT_DIR_NAME)

	if err := os.MkdirAll(pyroFullDirPath, 0755); err != nil {
		return "", err
	}

	return pyroFullDirPath, nil
}

func GetSnapshotFilePath(rootDirPath string) (string, error) {
	pyroDirFullPath, err := GetPyroFullPath(rootDirPath)
	if err != nil {
		return "", err
	}

	return filepath.Join(pyroDirFullPath, SNAPSHOT_FILENAME), nil
}
