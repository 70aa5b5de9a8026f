// Package logging provides structured logging for marcopolo commands.
//
// Logging wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Automatic context field injection (trace_id, span_id, run.id, document)
//   - JSON or console encoding to stderr, leaving stdout to command output
//
// Create a logger from config:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Every command run carries a run id:
//
//	ctx = logging.WithRunID(ctx, uuid.NewString())
//	logger.Info(ctx, "verification complete", zap.Float64("confidence", c))
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Warn(ctx, "ignored directive-like line")
//	tl.AssertLogged(t, zapcore.WarnLevel, "directive-like")
package logging
