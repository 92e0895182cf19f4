package utils

import (
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

// Helper to remove invalid filename characters
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}

// GetPathFormat returns the lowercase extension of path including the dot,
// or an empty string when there is none.
func GetPathFormat(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func ChangePathFormat(path string, newFormat string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + "." + newFormat
	}
	return path[0:len(path)-len(ext)] + "." + newFormat
}

func HasExtension(path string, exts []string) bool {
	return slices.Contains(exts, GetPathFormat(path))
}

func IsFileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir() && fi.Size() > 0
}

func IsDirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func FFmpegAvailable() bool {
	if err := exec.Command("ffmpeg", "-h").Run(); err != nil {
		return false
	}
	return true
}
