// Package logging builds the slog loggers used across opsglue.
//
// Output is JSON by default; LOG_FORMAT=text switches to the text handler for
// local runs and LOG_LEVEL selects the minimum level. Service clients derive
// their logger with ForService so every entry carries a "service" attribute.
//
//	logger := logging.NewLogger()
//	slog.SetDefault(logger)
//
//	svcLogger := logging.ForService(logger, "notion")
//	svcLogger.Info("service initialized")
package logging
