package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text, simple, or compact
	Output string `yaml:"output"` // stderr (default) or stdout
}

// bracketed fields are rendered as [value] prefixes by CompactFormatter, in this order
var bracketed = []string{"component", "interface", "file"}

// CompactFormatter implements a custom formatter for compact logging
type CompactFormatter struct {
	ShowTime bool
}

// Format renders a single log entry
func (f *CompactFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	if f.ShowTime {
		b.WriteString(fmt.Sprintf("[%s]", entry.Time.Format("15:04:05")))
	}

	b.WriteString(fmt.Sprintf("[%s]", strings.ToUpper(entry.Level.String())))

	for _, key := range bracketed {
		if v, ok := entry.Data[key]; ok {
			b.WriteString(fmt.Sprintf("[%v]", v))
		}
	}

	b.WriteString(" ")
	b.WriteString(entry.Message)

	// Remaining fields in sorted order for consistent output
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if !isBracketed(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if len(keys) > 0 {
		b.WriteString(" (")
		for i, key := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("%s=%v", key, entry.Data[key]))
		}
		b.WriteString(")")
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func isBracketed(key string) bool {
	for _, k := range bracketed {
		if k == key {
			return true
		}
	}
	return false
}

// InitLogger initializes the global logger with the provided configuration
func InitLogger(config LogConfig) {
	Logger = logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		// Default to info if invalid level
		level = logrus.InfoLevel
		Logger.Warnf("Invalid log level '%s', defaulting to 'info'", config.Level)
	}
	Logger.SetLevel(level)

	switch strings.ToLower(config.Format) {
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case "simple":
		Logger.SetFormatter(&CompactFormatter{ShowTime: false})
	case "compact", "":
		Logger.SetFormatter(&CompactFormatter{ShowTime: true})
	case "text":
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		Logger.SetFormatter(&CompactFormatter{ShowTime: true})
		Logger.Warnf("Invalid log format '%s', defaulting to 'compact'", config.Format)
	}

	Logger.SetOutput(outputFor(config.Output))

	Logger.Debugf("Logger initialized with level: %s, format: %s", level.String(), config.Format)
}

func outputFor(name string) io.Writer {
	if strings.EqualFold(name, "stdout") {
		return os.Stdout
	}
	// Reports go to stdout, so logs default to stderr
	return os.Stderr
}

// GetLogger returns the global logger instance
func GetLogger() *logrus.Logger {
	if Logger == nil {
		// Initialize with default config if not already initialized
		InitLogger(LogConfig{
			Level:  "info",
			Format: "compact",
		})
	}
	return Logger
}

// Helper functions for common logging patterns
func WithComponent(component string) *logrus.Entry {
	return GetLogger().WithField("component", component)
}

func WithComponentAndInterface(component, iface string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"component": component,
		"interface": iface,
	})
}
