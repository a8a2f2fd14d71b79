package logger

import (
	"time"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration.
type Config struct {
	Debug       bool
	SentryDSN   string
	Environment string
}

// New builds the process logger. When a Sentry DSN is configured, Error and
// above are forwarded to Sentry and lower levels are kept as breadcrumbs.
// The returned flush func must be called before exit.
func New(cfg Config) (*zap.Logger, func(), error) {
	var zapConfig zap.Config
	if cfg.Debug {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	base, err := zapConfig.Build()
	if err != nil {
		return nil, nil, err
	}
	if cfg.SentryDSN == "" {
		return base, func() { _ = base.Sync() }, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Debug:       cfg.Debug,
		Environment: cfg.Environment,
	})
	if err != nil {
		return nil, nil, err
	}

	core, err := zapsentry.NewCore(zapsentry.Configuration{
		Level:             zapcore.ErrorLevel,
		EnableBreadcrumbs: true,
		BreadcrumbLevel:   zapcore.InfoLevel,
		Tags:              map[string]string{"component": "api"},
	}, zapsentry.NewSentryClientFromClient(client))
	if err != nil {
		return nil, nil, err
	}

	log := zapsentry.AttachCoreToLogger(core, base)
	flush := func() {
		client.Flush(2 * time.Second)
		_ = log.Sync()
	}
	return log, flush, nil
}
