// Package logging is funclibd's structured logger: zap with context-aware
// methods and an optional OpenTelemetry sink.
//
// Every method takes a context and adds its correlation fields: trace and
// span ids, the project (WithProject) and the id of a scheduled library
// write (WithOperationID). Fields are only collected for entries that will
// be written.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithProject(ctx, project.ID, project.Path)
//	logger.Info(ctx, "function written", zap.String("function", name))
//
// # Sampling
//
// Each level below Error has its own budget per message and tick (see
// DefaultLevelSamplingConfig). Errors, and lifecycle messages such as
// "library cleaned", are never sampled.
//
// # Testing
//
// TestLogger records everything, unsampled:
//
//	tl := logging.NewTestLogger()
//	mgr := library.NewManager(pool, ui, index, library.WithLogger(tl.Logger))
//	tl.AssertLogged(t, zapcore.WarnLevel, "skipping malformed manifest line")
package logging
