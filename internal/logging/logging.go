package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	globallog "github.com/rs/zerolog/log"
)

// DefaultLogFile is where the JSON debug log goes unless --log-file says
// otherwise.
func DefaultLogFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".toolparameteriser", "debug.log")
}

// ConfigureGlobalLogger sets up the zerolog global logger instance.
// Call this once at the start of the application (e.g., in main.go).
// The console always gets human-readable output on stderr at info level, or
// debug with isVerbose. If logFilePath is set, every level is also written to
// that file as JSON.
func ConfigureGlobalLogger(isVerbose bool, logFilePath string) error {
	consoleLevel := zerolog.InfoLevel
	if isVerbose {
		consoleLevel = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    false,
		FormatLevel: func(i any) string {
			if level, ok := i.(string); ok {
				return strings.ToUpper(fmt.Sprintf("[%s]", level))
			}
			return fmt.Sprintf("[%v]", i)
		},
		FormatMessage: func(i any) string {
			// Prevent extra quotes around simple messages in console
			if msg, ok := i.(string); ok {
				return msg
			}
			return fmt.Sprintf("%v", i)
		},
	}

	writers := []io.Writer{
		&zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: console},
			Level:  consoleLevel,
		},
	}

	if logFilePath != "" {
		dir := filepath.Dir(logFilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory %q: %w", dir, err)
		}

		fileHandle, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", logFilePath, err)
		}
		writers = append(writers, fileHandle)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	globallog.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	globallog.Debug().Str("console_level", consoleLevel.String()).Str("log_file", logFilePath).Msg("Configured logging.")
	return nil
}
