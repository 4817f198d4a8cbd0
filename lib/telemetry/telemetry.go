package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"
	"vtaccess/lib/configutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var (
	mutex          sync.Mutex
	tracerProvider *trace.TracerProvider
	meterProvider  *metric.MeterProvider
)

// Tracer returns a named tracer from the global provider, which is a
// no-op until Setup succeeds.
func Tracer(name string) oteltrace.Tracer {
	return otel.Tracer(name)
}

// InitSlog installs a text handler on stderr as the default logger.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

func Setup(ctx context.Context, serviceName string, config Config) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	mutex.Lock()
	defer mutex.Unlock()

	r, err := newResource(serviceName)
	if err != nil {
		return err
	}

	tp, err := newTraceProvider(ctx, r, config)
	if err != nil {
		return err
	}
	mp, err := newMetricProvider(ctx, r, config)
	if err != nil {
		return errors.Join(err, tp.Shutdown(ctx))
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	tracerProvider = tp
	meterProvider = mp
	return nil
}

// searches up the filesystem from the cwd to find a file
// called telemetry.json5, once found it will then use it
// as a config to setup telemetry. without one, telemetry stays a no-op.
func SetupFromEnv(ctx context.Context, serviceName string) error {
	config, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if os.IsNotExist(err) {
		slog.DebugContext(ctx, "no telemetry.json5 found, telemetry export disabled")
		return nil
	}
	if err != nil {
		return err
	}
	if !config.Enabled() {
		return nil
	}
	return Setup(ctx, serviceName, config)
}

func Shutdown(ctx context.Context) error {
	mutex.Lock()
	defer mutex.Unlock()

	var errs []error
	if tracerProvider != nil {
		errs = append(errs, tracerProvider.Shutdown(ctx))
		tracerProvider = nil
	}
	if meterProvider != nil {
		errs = append(errs, meterProvider.Shutdown(ctx))
		meterProvider = nil
	}
	return errors.Join(errs...)
}

var setupTestEnvironments sync.Map

// sets up telemetry in a testing environment, ensuring that it isn't
// set up more than once per service name
func SetupForTesting(serviceName string) func() {
	_, setupAlready := setupTestEnvironments.LoadOrStore(serviceName, struct{}{})
	if setupAlready {
		return func() {}
	}

	InitSlog(true)
	err := SetupFromEnv(context.Background(), serviceName)
	if err != nil {
		panic(err)
	}

	return func() {
		err := Shutdown(context.Background())
		if err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}
}
