// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global logger and returns it. format is "json" or "console".
func Init(level, format string) zerolog.Logger {
	return InitWithWriter(level, format, os.Stderr)
}

func InitWithWriter(level, format string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "rentdesk").Logger()
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger
}

// RequestLogger writes one structured line per request and attaches a
// request-scoped logger carrying the request id to the context.
func RequestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		BeforeNextFunc: func(c echo.Context) {
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			reqLogger := logger.With().Str("request_id", reqID).Logger()
			c.SetRequest(c.Request().WithContext(reqLogger.WithContext(c.Request().Context())))
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Info()
			if v.Error != nil || v.Status >= 500 {
				event = logger.Error().Err(v.Error)
			}
			event.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
