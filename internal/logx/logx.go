// Package logx is HAMSTR's structured logging surface: every message is
// tagged with the subsystem that produced it (spec §7), on top of
// charmbracelet/log rather than the original's bare Python logging calls
// and [TAG] string prefixes.
package logx

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// Tag names the HAMSTR subsystem that produced a log line.
type Tag string

const (
	Session  Tag = "SESSION"
	Packet   Tag = "PACKET"
	Control  Tag = "CONTROL"
	TNC      Tag = "TNC"
	System   Tag = "SYSTEM"
	Progress Tag = "PROGRESS"
)

var (
	mu      sync.Mutex
	base    = charmlog.NewWithOptions(os.Stderr, charmlog.Options{ReportTimestamp: true})
	pattern *strftime.Strftime
	rotDir  string
	curDay  string
	file    *os.File
)

// Configure sets the optional daily-rotating log file. pattern is an
// strftime template (e.g. "hamstr-%Y%m%d.log"); an empty pattern disables
// the file sink and leaves output on stderr only.
func Configure(dir, patternStr string) error {
	mu.Lock()
	defer mu.Unlock()
	if patternStr == "" {
		pattern = nil
		return nil
	}
	p, err := strftime.New(patternStr)
	if err != nil {
		return fmt.Errorf("logx: invalid log path pattern %q: %w", patternStr, err)
	}
	pattern = p
	rotDir = dir
	return rotateLocked()
}

func rotateLocked() error {
	if pattern == nil {
		return nil
	}
	day := time.Now().Format("2006-01-02")
	if day == curDay && file != nil {
		return nil
	}
	name := pattern.FormatString(time.Now())
	path := name
	if rotDir != "" {
		path = rotDir + string(os.PathSeparator) + name
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logx: opening log file %s: %w", path, err)
	}
	if file != nil {
		file.Close()
	}
	file = f
	curDay = day
	base.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// Logger is a tag-scoped handle onto the shared charmbracelet logger.
type Logger struct {
	tag Tag
	l   *charmlog.Logger
}

// Tagged returns a Logger that prefixes every entry with tag, e.g.
// "[PACKET] reassembled 5/5 packets, crc ok".
func Tagged(tag Tag) Logger {
	mu.Lock()
	rotateLocked()
	l := base
	mu.Unlock()
	return Logger{tag: tag, l: l.With("tag", string(tag))}
}

func (lg Logger) fmt(format string, args []interface{}) string {
	return fmt.Sprintf("[%s] %s", lg.tag, fmt.Sprintf(format, args...))
}

func (lg Logger) Debug(format string, args ...interface{}) { lg.l.Debug(lg.fmt(format, args)) }
func (lg Logger) Info(format string, args ...interface{})  { lg.l.Info(lg.fmt(format, args)) }
func (lg Logger) Warn(format string, args ...interface{})  { lg.l.Warn(lg.fmt(format, args)) }
func (lg Logger) Error(format string, args ...interface{}) { lg.l.Error(lg.fmt(format, args)) }

// With attaches structured key/value context (session id, callsign, seq)
// to every subsequent entry from the returned Logger.
func (lg Logger) With(kv ...interface{}) Logger {
	return Logger{tag: lg.tag, l: lg.l.With(kv...)}
}
