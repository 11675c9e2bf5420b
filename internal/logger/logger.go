// Package logger sets up per-subsystem loggers writing to stdout and a
// rotated log file.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Subsystem tags
const (
	SubsysEngine    = "ENGN"
	SubsysAudio     = "AUDI"
	SubsysRecording = "RECD"
	SubsysHTTP      = "HTTP"
	SubsysTray      = "TRAY"
	SubsysHotkey    = "HKEY"
	SubsysMain      = "MAIN"
)

// Subsystems lists every subsystem tag
var Subsystems = []string{
	SubsysEngine, SubsysAudio, SubsysRecording, SubsysHTTP,
	SubsysTray, SubsysHotkey, SubsysMain,
}

const logFileName = "ezdaw.log"

// Config holds logger configuration
type Config struct {
	// LogDir is where the log file is written. Empty disables the file.
	LogDir string
	// DebugLevel is either a level ("info") or a level followed by
	// subsystem overrides ("info,ENGN=debug").
	DebugLevel string
	// MaxRolls is the number of rotated files kept
	MaxRolls int
	// Stdout receives a copy of every log line when not nil
	Stdout io.Writer
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	logDir := filepath.Join(homeDir, "Library", "Application Support", "ezdaw", "logs")

	return Config{
		LogDir:     logDir,
		DebugLevel: "info",
		MaxRolls:   7,
		Stdout:     os.Stdout,
	}
}

// Logger owns the log backend and hands out subsystem loggers
type Logger struct {
	mu           sync.Mutex
	rotator      *rotator.Rotator
	stdout       io.Writer
	backend      *slog.Backend
	defaultLevel slog.Level
	levels       map[string]slog.Level
	loggers      map[string]slog.Logger
	debugLevel   string
	closed       bool
}

// New creates a new logger
func New(config Config) (*Logger, error) {
	l := &Logger{
		stdout:  config.Stdout,
		loggers: make(map[string]slog.Logger),
	}

	if err := l.parseLevels(config.DebugLevel); err != nil {
		return nil, err
	}

	if config.LogDir != "" {
		if err := os.MkdirAll(config.LogDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		maxRolls := config.MaxRolls
		if maxRolls <= 0 {
			maxRolls = DefaultConfig().MaxRolls
		}
		r, err := rotator.New(filepath.Join(config.LogDir, logFileName), 1024, false, maxRolls)
		if err != nil {
			return nil, fmt.Errorf("failed to create file rotator: %w", err)
		}
		l.rotator = r
	}

	l.backend = slog.NewBackend(l)
	return l, nil
}

// parseLevels parses a debuglevel string. Callers hold mu or have exclusive
// access.
func (l *Logger) parseLevels(debugLevel string) error {
	if debugLevel == "" {
		debugLevel = "info"
	}

	defaultLevel := slog.LevelInfo
	levels := make(map[string]slog.Level)
	for _, v := range strings.Split(debugLevel, ",") {
		fields := strings.Split(strings.TrimSpace(v), "=")
		switch len(fields) {
		case 1:
			level, ok := slog.LevelFromString(fields[0])
			if !ok {
				return fmt.Errorf("invalid log level %q", fields[0])
			}
			defaultLevel = level
		case 2:
			level, ok := slog.LevelFromString(fields[1])
			if !ok {
				return fmt.Errorf("invalid log level %q for subsystem %s", fields[1], fields[0])
			}
			levels[strings.ToUpper(fields[0])] = level
		default:
			return fmt.Errorf("unable to parse %q as subsys=level debuglevel string", v)
		}
	}

	l.defaultLevel = defaultLevel
	l.levels = levels
	l.debugLevel = debugLevel
	return nil
}

// Write is the sink of the slog backend
func (l *Logger) Write(b []byte) (int, error) {
	if l.stdout != nil {
		l.stdout.Write(b)
	}
	if l.rotator != nil {
		l.rotator.Write(b)
	}
	return len(b), nil
}

func (l *Logger) levelFor(subsys string) slog.Level {
	if level, ok := l.levels[subsys]; ok {
		return level
	}
	return l.defaultLevel
}

// Logger returns the logger of a subsystem
func (l *Logger) Logger(subsys string) slog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lg, ok := l.loggers[subsys]; ok {
		return lg
	}

	lg := l.backend.Logger(subsys)
	lg.SetLevel(l.levelFor(subsys))
	l.loggers[subsys] = lg
	return lg
}

// SetLevel applies a new debuglevel string to every subsystem logger
func (l *Logger) SetLevel(debugLevel string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.parseLevels(debugLevel); err != nil {
		return err
	}
	for subsys, lg := range l.loggers {
		lg.SetLevel(l.levelFor(subsys))
	}
	return nil
}

// GetLevel returns the current debuglevel string
func (l *Logger) GetLevel() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debugLevel
}

// Levels returns the effective level of every created subsystem logger
func (l *Logger) Levels() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := make(map[string]string, len(l.loggers))
	for subsys, lg := range l.loggers {
		res[subsys] = lg.Level().String()
	}
	return res
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotator == nil || l.closed {
		return nil
	}
	l.closed = true
	return l.rotator.Close()
}
