package stream

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// MaxLineBytes bounds a single fragment. Longer lines are skipped like any
// other malformed line.
const MaxLineBytes = 1 << 20

// LineSource yields raw lines lazily.
type LineSource interface {
	Next() bool
	Bytes() []byte
}

// Lines reads newline-delimited fragments from a response body on demand.
type Lines struct {
	body    io.ReadCloser
	r       *bufio.Reader
	line    []byte
	err     error
	skipped int
}

// NewLines wraps body. The caller must Close the result.
func NewLines(body io.ReadCloser) *Lines {
	return &Lines{body: body, r: bufio.NewReaderSize(body, 64*1024)}
}

// Next advances to the next line that fits within MaxLineBytes. A final
// line without a trailing newline is still returned.
func (l *Lines) Next() bool {
	for l.err == nil {
		line, tooLong, err := l.readLine()
		l.err = err
		if tooLong {
			l.skipped++
			continue
		}
		if err == nil || (errors.Is(err, io.EOF) && len(line) > 0) {
			l.line = bytes.TrimSuffix(line, []byte("\r"))
			return true
		}
	}
	return false
}

// readLine returns the next line without its newline. Once a line passes
// MaxLineBytes the rest of it is discarded and tooLong is set.
func (l *Lines) readLine() (line []byte, tooLong bool, err error) {
	l.line = l.line[:0]
	for {
		chunk, err := l.r.ReadSlice('\n')
		if !tooLong {
			if len(l.line)+len(chunk) > MaxLineBytes+1 {
				tooLong = true
				l.line = l.line[:0]
			} else {
				l.line = append(l.line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return bytes.TrimSuffix(l.line, []byte("\n")), tooLong, err
	}
}

// Bytes returns the current line; valid until the next call to Next.
func (l *Lines) Bytes() []byte { return l.line }

// Err reports the first non-EOF read error.
func (l *Lines) Err() error {
	if errors.Is(l.err, io.EOF) {
		return nil
	}
	return l.err
}

// Skipped counts lines dropped for exceeding MaxLineBytes.
func (l *Lines) Skipped() int { return l.skipped }

// Close releases the underlying body.
func (l *Lines) Close() error { return l.body.Close() }
