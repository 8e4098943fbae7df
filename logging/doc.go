// Package logging provides the minimal Logger interface used across the
// fiber module, a slog adapter, and a NoOpLogger.
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "json"})
//	loop := fiber.NewLoop(fiber.WithLogger(logger))
package logging
