package logging

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"netsentinel/pkg/csconfig"
)

const defLogFilename = "netsentinel.log"

// Setup configures the global logrus instance from the common section:
// output media, format and level. Every component then derives its own
// entry via logrus.WithField("service", ...).
func Setup(cfg *csconfig.CommonCfg) error {
	switch cfg.LogMedia {
	case "stdout", "":
		// noop, logrus defaults to stderr which is what we want for a cron job
	case "file":
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, defLogFilename),
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	default:
		return fmt.Errorf("unknown log_media %q", cfg.LogMedia)
	}

	switch cfg.LogFormat {
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	default:
		return fmt.Errorf("unknown log_format %q", cfg.LogFormat)
	}

	if cfg.LogLevel != nil {
		logrus.SetLevel(*cfg.LogLevel)
	}

	return nil
}
