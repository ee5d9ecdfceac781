package options

import (
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/linyinfeng/oranc/pkg/xlog"
)

// LoggingFlagCategory is the flag category for ambient logging options.
const LoggingFlagCategory = "[Logging]"

// NewLoggingOptions returns a new *LoggingOptions with default values.
func NewLoggingOptions() *LoggingOptions {
	return &LoggingOptions{
		Level:  "info",
		Format: "text",
	}
}

// LoggingOptions configures the ambient xlog logger every command installs
// as the default before running.
type LoggingOptions struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// Format is one of "text", "json".
	Format string
	// Path, if set, additionally writes JSON logs to a rotated file at
	// this path.
	Path string
}

// Flags returns the []cli.Flag related to current options.
func (o *LoggingOptions) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       `log level, one of ["debug", "info", "warn", "error"]`,
			Sources:     cli.EnvVars("ORANC_LOG_LEVEL"),
			Destination: &o.Level,
			Value:       o.Level,
			Category:    LoggingFlagCategory,
			Persistent:  true,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       `log format, one of ["text", "json"]`,
			Sources:     cli.EnvVars("ORANC_LOG_FORMAT"),
			Destination: &o.Format,
			Value:       o.Format,
			Category:    LoggingFlagCategory,
			Persistent:  true,
		},
		&cli.StringFlag{
			Name:        "log-path",
			Usage:       "additionally write JSON logs to this rotated file",
			Sources:     cli.EnvVars("ORANC_LOG_PATH"),
			Destination: &o.Path,
			Value:       o.Path,
			Category:    LoggingFlagCategory,
			Persistent:  true,
		},
	}
}

// Apply installs a Logger built from these options as xlog's default.
func (o *LoggingOptions) Apply() {
	cfg := xlog.NewConfig()
	cfg.Level = o.level()
	if o.Format != "" {
		cfg.StdFormat = o.Format
	}
	cfg.Path = o.Path
	xlog.SetDefault(xlog.New(cfg))
}

func (o *LoggingOptions) level() slog.Level {
	switch o.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
