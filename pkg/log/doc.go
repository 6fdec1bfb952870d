// Package log provides Lithium's structured logging facade and utilities.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that preserves our existing
// formatter/outputs pipeline. This allows adoption of the slog ecosystem
// while keeping consistent output and behavior across the codebase.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("broker"), log.Str("channel", "user:theme"))
//	l.Info("channel created", log.Int("subscribers", 0))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config, supporting JSON
// or text formatting and console, file, or null outputs.
//
// # Interop
//
// To integrate with libraries expecting *log.Logger, use ToStdLogger or
// RedirectStdLog; most code should remain against this facade.
package log
