package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger zerolog.Logger
}

var (
	// Default is the default logger instance
	Default *Logger
)

// Init initializes the logger with the given configuration
func Init() {
	level := getLogLevel()

	// Configure zerolog
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	// Create console writer for development
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	Default = New(output, level)

	Default.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// New creates a logger writing to w at the given level
func New(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// getLogLevel returns the log level from environment variable
func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("DEAL_ENVIRONMENT")
		if levelStr == "production" {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// Debug returns a debug event
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info returns an info event
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn returns a warn event
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error returns an error event
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

// Printf lets the logger stand in for a printf-style sink (chromedp.WithLogf)
func (l *Logger) Printf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(format, v...)
}

func ensure() {
	if Default == nil {
		Init()
	}
}

// ForComponent creates a logger tagged with a component name
func ForComponent(component string) *Logger {
	ensure()
	return Default.WithField("component", component)
}

// ForSession creates a logger for the browser session
func ForSession() *Logger {
	return ForComponent("session")
}

// ForForm creates a logger for the form filler
func ForForm() *Logger {
	return ForComponent("form")
}

// ForExtractor creates a logger for the result extractor
func ForExtractor() *Logger {
	return ForComponent("extractor")
}

// ForScraper creates a logger for the scrape pipeline
func ForScraper() *Logger {
	return ForComponent("scraper")
}

// ForWorker creates a logger for the worker
func ForWorker() *Logger {
	return ForComponent("worker")
}

// ForPublisher creates a logger for the publisher
func ForPublisher() *Logger {
	return ForComponent("publisher")
}

// ForCache creates a logger for the cache
func ForCache() *Logger {
	return ForComponent("cache")
}

// ForSink creates a logger for a named sink
func ForSink(name string) *Logger {
	return ForComponent("sink").WithField("sink", name)
}

// ForStore creates a logger for the property store
func ForStore() *Logger {
	return ForComponent("store")
}
