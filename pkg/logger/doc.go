// Package logger builds configured slog loggers for the service.
//
// Production gets JSON output at INFO level for log aggregation; development
// gets human-readable text at DEBUG. Context extractors inject request-scoped
// attributes (request ID, tenant ID) into every record logged with a context.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Environment, "flaggate"),
//	)
//	logger.SetAsDefault(log)
package logger
