// Package logger implements leveled, multi-destination logging for the gateway.
package logger

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/gookit/color"
)

// Level is a log severity.
type Level int

// Severities, in increasing order.
const (
	Debug Level = iota
	Info
	Warn
	Error
)

// Writer is implemented by anything that can receive log lines.
type Writer interface {
	Log(level Level, format string, args ...interface{})
}

// Destination is a log sink kind.
type Destination int

// Supported destinations.
const (
	DestinationStdout Destination = iota
	DestinationFile
)

type destination interface {
	log(t time.Time, level Level, format string, args ...interface{})
	close()
}

// Logger dispatches log lines to a set of destinations, filtering by level.
type Logger struct {
	level        Level
	destinations []destination
	mutex        sync.Mutex
}

// New allocates a Logger.
func New(level Level, destinations []Destination, filePath string) (*Logger, error) {
	lg := &Logger{level: level}

	for _, d := range destinations {
		switch d {
		case DestinationStdout:
			lg.destinations = append(lg.destinations, newDestinationStdout())

		case DestinationFile:
			fd, err := newDestinationFile(filePath)
			if err != nil {
				lg.Close()
				return nil, err
			}
			lg.destinations = append(lg.destinations, fd)
		}
	}

	return lg, nil
}

// Close releases all destinations.
func (lg *Logger) Close() {
	for _, d := range lg.destinations {
		d.close()
	}
}

// Log implements Writer.
func (lg *Logger) Log(level Level, format string, args ...interface{}) {
	if level < lg.level {
		return
	}

	lg.mutex.Lock()
	defer lg.mutex.Unlock()

	t := time.Now()
	for _, d := range lg.destinations {
		d.log(t, level, format, args...)
	}
}

// Sub returns a Writer that prefixes every line with a component tag.
func (lg *Logger) Sub(tag string) Writer {
	return &tagged{parent: lg, tag: tag}
}

type tagged struct {
	parent Writer
	tag    string
}

func (t *tagged) Log(level Level, format string, args ...interface{}) {
	t.parent.Log(level, "["+t.tag+"] "+format, args...)
}

func levelString(level Level, useColor bool) string {
	switch level {
	case Debug:
		if useColor {
			return color.RenderString(color.Gray.Code(), "DEB")
		}
		return "DEB"
	case Info:
		if useColor {
			return color.RenderString(color.Green.Code(), "INF")
		}
		return "INF"
	case Warn:
		if useColor {
			return color.RenderString(color.Yellow.Code(), "WAR")
		}
		return "WAR"
	default:
		if useColor {
			return color.RenderString(color.Red.Code(), "ERR")
		}
		return "ERR"
	}
}

func writeLine(buf *bytes.Buffer, t time.Time, level Level, useColor bool, format string, args []interface{}) {
	buf.WriteString(t.Format("2006/01/02 15:04:05"))
	buf.WriteByte(' ')
	buf.WriteString(levelString(level, useColor))
	buf.WriteByte(' ')
	fmt.Fprintf(buf, format, args...)
	buf.WriteByte('\n')
}
