/*
Package activity builds the application logger and the audit trail.

OUTPUT:
  Every entry goes to the log file (append mode, directories created on
  demand) and, unless disabled, to stderr:

    [2025-03-10 14:02:11] [INFO] - loan created: user 3 book 7 due 2025-03-24
    [2025-03-10 14:02:11] [ACTION] - USER[1] - CHECKOUT: loan 12: book 7 to user 3, due 2025-03-24

AUDIT:
  Log implements library.ActivityLog. Audit entries are Info level with
  fields action/actor so they can be filtered from ordinary messages.
*/
package activity

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const timestampLayout = "2006-01-02 15:04:05"

// Config controls where the log goes.
type Config struct {
	File    string // empty disables the file sink
	Level   string // logrus level name, default info
	Console bool
}

// Log is the application logger plus the audit trail.
type Log struct {
	*logrus.Logger
	file *os.File
}

// New opens the log file and returns a ready logger. Close releases the file.
func New(cfg Config) (*Log, error) {
	logger := logrus.New()
	logger.SetFormatter(&LineFormatter{})

	level := logrus.InfoLevel
	if cfg.Level != "" {
		lvl, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = lvl
	}
	logger.SetLevel(level)

	var writers []io.Writer
	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}
	if cfg.Console {
		writers = append(writers, os.Stderr)
	}
	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return &Log{Logger: logger, file: file}, nil
}

// Wrap adapts an existing logger, typically a test logger.
func Wrap(logger *logrus.Logger) *Log {
	return &Log{Logger: logger}
}

func (l *Log) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// UserAction records an action performed by a logged-in user.
func (l *Log) UserAction(userID int64, action, description string) {
	actor := fmt.Sprintf("USER[%d]", userID)
	l.WithFields(logrus.Fields{"action": action, "actor": actor}).
		Infof("%s - %s: %s", actor, action, description)
}

// SystemAction records an action with no user behind it.
func (l *Log) SystemAction(action, description string) {
	l.WithFields(logrus.Fields{"action": action, "actor": "SYSTEM"}).
		Infof("SYSTEM - %s: %s", action, description)
}

// =============================================================================
// FORMATTER
// =============================================================================

// LineFormatter renders "[timestamp] [LEVEL] - message key=value ...".
// Audit entries print ACTION as their level and omit their own fields.
type LineFormatter struct{}

func (f *LineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	level := strings.ToUpper(e.Level.String())
	_, audit := e.Data["action"]
	if audit {
		level = "ACTION"
	}

	fmt.Fprintf(&b, "[%s] [%s] - %s", e.Time.Format(timestampLayout), level, e.Message)

	for _, k := range sortedKeys(e.Data) {
		if audit && (k == "action" || k == "actor") {
			continue
		}
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func sortedKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
