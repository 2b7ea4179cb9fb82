package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

var base = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Formatter:       log.JSONFormatter,
	Level:           log.InfoLevel,
})

// L is the process-wide logger. Handlers are backed by charmbracelet/log.
var L = slog.New(base)

// SetLevel configures the global log level (debug, info, warn, error).
func SetLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "debug":
		base.SetLevel(log.DebugLevel)
	case "warn":
		base.SetLevel(log.WarnLevel)
	case "error":
		base.SetLevel(log.ErrorLevel)
	default:
		base.SetLevel(log.InfoLevel)
	}
}

// SetFormat switches the output encoding (json, text, logfmt).
func SetFormat(format string) {
	switch strings.ToLower(format) {
	case "text":
		base.SetFormatter(log.TextFormatter)
	case "logfmt":
		base.SetFormatter(log.LogfmtFormatter)
	default:
		base.SetFormatter(log.JSONFormatter)
	}
}

// SetOutput redirects log output, mostly for tests and the stdio MCP mode
// where stdout belongs to the protocol.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}
