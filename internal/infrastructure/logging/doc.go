// Package logging provides structured logging for HireHub Core.
//
// It wraps log/slog so every component logs the same way:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Every entry carries service and version fields. Components add their own
// context with With:
//
//	logger := logging.New(cfg.Logging, version).With("component", "guard")
//	logger.Info("redirecting", "route", "dashboard", "to", "/login")
//
// Never log session tokens, passwords or JWT secrets.
package logging
