// Package httpserver runs an http.Handler with timeouts and graceful shutdown
// tied to a context.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, inspect.Router(world)); err != nil {
//		return err
//	}
//
// Run returns once ctx is canceled and in-flight requests have drained, or
// when the shutdown timeout expires. Listen failures wrap ErrStart and
// shutdown failures wrap ErrShutdown. Signal handling is left to the caller,
// typically via signal.NotifyContext.
//
// HealthCheckHandler provides liveness and readiness endpoints.
package httpserver
