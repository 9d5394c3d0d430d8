package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// SetupLogger installs the process-wide slog default so slog.Info/Warn/Error
// calls anywhere in the application use it without carrying a *slog.Logger
// through every constructor. Every line carries a "service" attribute so
// aggregated output from several processes stays attributable.
//
// format "json" selects the JSON handler; anything else gets the text handler
// for local development. Unknown levels fall back to info.
func SetupLogger(format, level string) {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug, // include file:line only when debugging
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler).With("service", "logfold"))
	slog.Info("logger initialised", "format", format, "level", lvl.String())
}

// parseLevel maps a configuration string onto a slog level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
