// Package redis provides helpers for connecting to a redis server with
// retries and wiring it into health checks.
//
// Redis is optional for the service: it carries cross-instance cache
// invalidation only, so Config.ConnectionURL may be left empty and callers
// should check Config.Enabled before connecting.
//
// # Usage
//
//	var cfg redis.Config
//	if err := env.Parse(&cfg); err != nil {
//	    panic(err)
//	}
//
//	if cfg.Enabled() {
//	    client, err := redis.Connect(ctx, cfg)
//	    if err != nil {
//	        panic(err)
//	    }
//	    defer client.Close()
//	}
//
// Sentinel errors such as ErrRedisNotReady wrap the underlying go-redis
// errors via errors.Join for easy classification.
package redis
