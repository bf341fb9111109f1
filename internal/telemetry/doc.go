// Package telemetry exports funclibd's traces and metrics over OTLP (gRPC
// or HTTP/protobuf).
//
// Telemetry is off by default. When it is off, or a provider fails to
// start, Tracer and Meter fall back to the global no-op providers, so
// instrumented code such as the library manager needs no branches.
//
// The exported resource names the library layout (AttrManifestFile,
// AttrExtension, AttrWorkers) next to the service identity:
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(appCfg, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// NewTestTelemetry records everything in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	// ... exercise code using tt.Tracer and tt.Meter ...
//	tt.AssertSpanExists(t, "library.Write")
//	assert.Equal(t, int64(1), tt.CounterValue(t, "funclib.writes"))
package telemetry
