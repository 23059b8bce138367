// Package logging provides structured logging for storefront-auth.
//
// It wraps log/slog so every component logs with the same handler, level
// filter and default attributes (service, version).
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//	logger.Error("failed to connect", "error", err)
//
// # Security
//
// Never log passwords, tokens, OTP codes or the API key. The development
// LogMailer is the single exception and refuses to run in production.
package logging
