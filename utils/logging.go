package utils

import (
	"fmt"
	"io"
	"log"
	"os"
)

const logFlags = log.Ldate | log.Ltime | log.Lshortfile

// SetupLogging points the global logger at stdout and, when logFile is set,
// also appends to that file. It returns the file to close on shutdown, or
// nil when logging to stdout only.
func SetupLogging(logFile string) io.Closer {
	log.SetFlags(logFlags)
	log.SetOutput(os.Stdout)

	if logFile == "" {
		return nil
	}

	// Try to open log file, but don't fail if we can't
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("Warning: Could not open log file %s: %v", logFile, err)
		return nil
	}

	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return f
}

// NewCustomLogger creates a logger writing to the global output with a
// component prefix such as "[STORAGE] ".
func NewCustomLogger(prefix string) *log.Logger {
	return log.New(log.Writer(), fmt.Sprintf("[%s] ", prefix), logFlags)
}
