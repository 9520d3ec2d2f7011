// Package logging provides slog loggers with per-module log levels.
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"tcam":      "debug",
//			"serialbridge": "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("tcam")
//	logger.Info("Sensor detected", "width", 384, "height", 288)
//
// Logs go to stderr so that command output on stdout stays machine readable.
package logging
