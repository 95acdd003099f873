package commons

import (
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

var Logger = newLogger()

func parseLevel(level string) log.Lvl {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return log.DEBUG
	case "INFO":
		return log.INFO
	case "WARN":
		return log.WARN
	case "ERROR":
		return log.ERROR
	case "OFF":
		return log.OFF
	default:
		return log.INFO
	}
}

func newLogger() *log.Logger {
	logger := log.New("accountd")
	logger.SetLevel(parseLevel(os.Getenv("LOG_LEVEL")))
	logger.SetHeader("${time_rfc3339} ${level} ${short_file}:${line} -")
	return logger
}

// InitLogger re-applies the configured level once the configuration is loaded.
func InitLogger() {
	Logger.SetLevel(parseLevel(GetConfig().LogLevel))
}
