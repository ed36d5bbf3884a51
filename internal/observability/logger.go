package observability

import (
	"github.com/danmuck/lunkwill/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger installs the runtime logger for app as the global logger.
// level comes from configuration; LUNKWILL_LOG_* variables still override
// it.
func InitLogger(app, level string) zerolog.Logger {
	return initLogger(logging.Resolve(logging.ProfileRuntime, level), app)
}

func initLogger(cfg logging.Config, app string) zerolog.Logger {
	logger := logging.New(cfg).With().Str("app", app).Logger()
	zerolog.SetGlobalLevel(cfg.Level)
	log.Logger = logger
	return logger
}
