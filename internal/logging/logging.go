// Package logging builds the component loggers used across shelf. All of
// them share one writer: stderr, or a size-rotated file.
package logging

import (
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options select the shared writer.
type Options struct {
	File       string // empty = stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Verbose    bool // adds file:line to every entry
}

var (
	mu     sync.Mutex
	writer io.Writer = os.Stderr
	flags            = log.LstdFlags
	closer io.Closer
)

// Setup installs the shared writer. Call Close before exit to flush a
// rotated file.
func Setup(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	if closer != nil {
		_ = closer.Close()
		closer = nil
	}

	if opts.File == "" {
		writer = os.Stderr
	} else {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		writer = lj
		closer = lj
	}

	flags = log.LstdFlags
	if opts.Verbose {
		flags |= log.Lshortfile
	}
}

// New returns a logger with the given component prefix, e.g. "sync"
// becomes "[sync] ".
func New(component string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	return log.New(writer, "["+component+"] ", flags)
}

// Writer returns the shared writer.
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return writer
}

// Close releases a rotated log file. Stderr is left open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	writer = os.Stderr
	return err
}
