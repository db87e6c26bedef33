// Package logger builds *slog.Logger instances for tickbus components and
// provides attribute helpers that keep diagnostic keys consistent.
//
// New creates a logger from functional options:
//
//   - WithFormat / WithTextFormatter / WithJSONFormatter select the output format.
//   - WithLevel sets the minimum level; ParseLevel maps names like "debug".
//   - WithAttr and WithService attach static attributes.
//   - WithContextExtractors injects attributes taken from the context given to
//     the *Context logging methods, such as the current tick number.
//   - WithConfig applies a Config loaded from LOG_LEVEL, LOG_FORMAT and
//     LOG_SERVICE.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithTextFormatter(),
//	    logger.WithLevel(slog.LevelDebug),
//	    logger.WithContextExtractors(schedule.TickExtractor),
//	)
//	log.WarnContext(ctx, "reader missed messages",
//	    logger.MessageType("game.Collision"),
//	    logger.Missed(3),
//	)
//
// Error and Errors return an empty attribute for nil errors so they can be
// passed unconditionally.
package logger
