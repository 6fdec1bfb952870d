package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// clone returns a shallow copy of the logger with its own fields map and a
// fresh slog bridge, so level changes and added fields stay local to the copy.
func (l *BaseLogger) clone() *BaseLogger {
	nl := &BaseLogger{
		level:     l.level,
		fields:    make(Fields, len(l.fields)),
		formatter: l.formatter,
		outputs:   l.outputs,
	}
	for k, v := range l.fields {
		nl.fields[k] = v
	}
	nl.slogLogger = slog.New(newBridgeHandler(nl)).With(attrsToAny(attrsFromMap(nl.fields))...)
	return nl
}

func (l *BaseLogger) log(level Level, msg string, attrs []slog.Attr) {
	l.slogLogger.LogAttrs(context.Background(), toSlogLevel(level), msg, attrs...)
	if level == FatalLevel {
		os.Exit(1)
	}
}

// Debug logs a message at DebugLevel.
func (l *BaseLogger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, attrsFromFieldSlice(fields))
}

// Info logs a message at InfoLevel.
func (l *BaseLogger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, attrsFromFieldSlice(fields))
}

// Warn logs a message at WarnLevel.
func (l *BaseLogger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, attrsFromFieldSlice(fields))
}

// Error logs a message at ErrorLevel.
func (l *BaseLogger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, attrsFromFieldSlice(fields))
}

// Fatal logs a message at FatalLevel and exits the process.
func (l *BaseLogger) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, attrsFromFieldSlice(fields))
}

// Debugf logs a formatted message when args look like a format string, and
// otherwise treats args as key-value pairs.
func (l *BaseLogger) Debugf(msg string, args ...interface{}) { l.logf(DebugLevel, msg, args) }

// Infof logs a formatted message at InfoLevel.
func (l *BaseLogger) Infof(msg string, args ...interface{}) { l.logf(InfoLevel, msg, args) }

// Warnf logs a formatted message at WarnLevel.
func (l *BaseLogger) Warnf(msg string, args ...interface{}) { l.logf(WarnLevel, msg, args) }

// Errorf logs a formatted message at ErrorLevel.
func (l *BaseLogger) Errorf(msg string, args ...interface{}) { l.logf(ErrorLevel, msg, args) }

// Fatalf logs a formatted message at FatalLevel and exits the process.
func (l *BaseLogger) Fatalf(msg string, args ...interface{}) { l.logf(FatalLevel, msg, args) }

func (l *BaseLogger) logf(level Level, msg string, args []interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.log(level, msg, nil)
}

// WithField returns a logger with one additional field.
func (l *BaseLogger) WithField(key string, value interface{}) Logger {
	return l.With(Field{Key: key, Value: value})
}

// WithFields returns a logger with the provided fields merged in.
func (l *BaseLogger) WithFields(fields Fields) Logger {
	if len(fields) == 0 {
		return l
	}
	nl := l.clone()
	for k, v := range fields {
		nl.fields[k] = v
	}
	nl.slogLogger = slog.New(newBridgeHandler(nl)).With(attrsToAny(attrsFromMap(nl.fields))...)
	return nl
}

// WithError returns a logger carrying the error under the "error" key.
func (l *BaseLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.With(Err(err))
}

// With returns a logger with the provided fields merged in.
func (l *BaseLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	nl := l.clone()
	for _, f := range fields {
		nl.fields[f.Key] = f.Value
	}
	nl.slogLogger = slog.New(newBridgeHandler(nl)).With(attrsToAny(attrsFromMap(nl.fields))...)
	return nl
}

// WithComponent tags the logger with a component name.
func (l *BaseLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

// SetLevel sets the minimum log level.
func (l *BaseLogger) SetLevel(level Level) { l.level = level }

// GetLevel returns the current minimum log level.
func (l *BaseLogger) GetLevel() Level { return l.level }
