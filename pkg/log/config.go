package log

import (
	"fmt"
	stdlog "log"
	"strings"
)

// Config declares a logger in data form, suitable for wiring from CLI flags,
// config files, or environment variables.
type Config struct {
	// Level is one of debug|info|warn|error|fatal (default info).
	Level string `json:"level" yaml:"level"`
	// Format is one of text|json (default text).
	Format string `json:"format" yaml:"format"`
	// Output is one of console|file|null (default console).
	Output string `json:"output" yaml:"output"`
	// FilePath is required when Output is "file".
	FilePath string `json:"filePath" yaml:"filePath"`
}

// ParseLevel converts a level name to a Level. Matching is case-insensitive.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// ApplyConfig builds a Logger from a declarative Config.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "json":
		formatter = &JSONFormatter{}
	case "text", "":
		formatter = &TextFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	var output Output
	switch strings.ToLower(cfg.Output) {
	case "console", "":
		output = NewConsoleOutput()
	case "null":
		output = NullOutput{}
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("log: output \"file\" requires filePath")
		}
		output, err = NewFileOutput(cfg.FilePath)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("log: unknown output %q", cfg.Output)
	}

	return NewLogger(WithLevel(level), WithFormatter(formatter), WithOutput(output)), nil
}

// stdLogWriter adapts a Logger to an io.Writer for the standard library logger.
type stdLogWriter struct {
	logger Logger
	level  Level
}

func (w stdLogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	switch w.level {
	case DebugLevel:
		w.logger.Debug(msg)
	case WarnLevel:
		w.logger.Warn(msg)
	case ErrorLevel:
		w.logger.Error(msg)
	default:
		w.logger.Info(msg)
	}
	return len(p), nil
}

// RedirectStdLog routes the standard library's default logger (used by
// dependencies such as Pebble) through the provided Logger at InfoLevel.
func RedirectStdLog(logger Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdLogWriter{logger: logger, level: InfoLevel})
}

// ToStdLogger returns a *log.Logger that forwards to the provided Logger at
// the given level, for libraries that accept a standard logger.
func ToStdLogger(logger Logger, level Level) *stdlog.Logger {
	return stdlog.New(stdLogWriter{logger: logger, level: level}, "", 0)
}
