package tool

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// GetFileInfoFromPath reads name, size and sha256 of a local file.
func GetFileInfoFromPath(filePath string) (string, int64, string, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to stat file: %v", err)
	}
	if fileInfo.IsDir() {
		return "", 0, "", fmt.Errorf("path is a directory, not a file")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to open file for hashing: %v", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", 0, "", fmt.Errorf("failed to calculate SHA256: %v", err)
	}
	return filepath.Base(filePath), fileInfo.Size(), hex.EncodeToString(hasher.Sum(nil)), nil
}
