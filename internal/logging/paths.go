package logging

import (
	"os"
	"path/filepath"
)

// LogDirEnv overrides the log directory.
const LogDirEnv = "DOCFUSE_LOG_DIR"

// DefaultLogDir returns $DOCFUSE_LOG_DIR or ~/.docfuse/logs, falling back
// to the temp directory when no home directory is available.
func DefaultLogDir() string {
	if dir := os.Getenv(LogDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docfuse", "logs")
	}
	return filepath.Join(home, ".docfuse", "logs")
}

// DefaultLogPath returns the log file shared by all docfuse commands.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "docfuse.log")
}
