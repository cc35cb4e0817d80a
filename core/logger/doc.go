// Package logger builds slog loggers for the server process and offers
// attribute helpers shared by every component.
//
//	log := logger.New(
//		logger.WithLevelName("debug"),
//		logger.WithFormat(logger.FormatJSON),
//		logger.WithService("appserver"),
//	)
//	log.Info("application deployed",
//		logger.Component("host"),
//		logger.App("/shop"),
//	)
//
// Helpers return an empty slog.Attr for zero values (nil errors, empty ids),
// which slog drops from output.
package logger
