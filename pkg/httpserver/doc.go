// Package httpserver provides an http.Server wrapper with graceful shutdown,
// OS signal handling, functional options, and health check handlers.
//
// # Usage
//
//	var cfg httpserver.Config
//	if err := env.Parse(&cfg); err != nil {
//	    panic(err)
//	}
//
//	srv := httpserver.NewFromConfig(cfg,
//	    httpserver.WithLogger(log),
//	    httpserver.WithStartHook(func(l *slog.Logger) {
//	        l.Info("listening", "addr", cfg.Addr)
//	    }),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//	    log.Error("server failed", logger.Error(err))
//	}
//
// Run blocks until the context is cancelled or SIGINT/SIGTERM is received,
// then drains in-flight requests within the configured shutdown timeout.
package httpserver
