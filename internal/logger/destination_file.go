package logger

import (
	"bytes"
	"os"
	"time"
)

type destinationFile struct {
	f   *os.File
	buf bytes.Buffer
}

func newDestinationFile(filePath string) (destination, error) {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	return &destinationFile{f: f}, nil
}

func (d *destinationFile) log(t time.Time, level Level, format string, args ...interface{}) {
	d.buf.Reset()
	writeLine(&d.buf, t, level, false, format, args)
	d.f.Write(d.buf.Bytes()) //nolint:errcheck
}

func (d *destinationFile) close() {
	d.f.Close() //nolint:errcheck
}
