package runner

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// readLines decodes r as UTF-8, replacing invalid sequences with U+FFFD,
// and calls fn for each line with its line terminator removed. A final
// line without a terminator is still delivered. If maxLine > 0, at most
// maxLine bytes of each line are buffered, the rest is discarded and fn
// is told the line was cut.
func readLines(r io.Reader, maxLine int, fn func(line string, cut bool)) error {
	br := bufio.NewReader(transform.NewReader(r, unicode.UTF8.NewDecoder()))
	var (
		buf  []byte
		full bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		if !full {
			buf, full = appendCapped(buf, chunk, maxLine)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if len(buf) > 0 || full {
			fn(trimNewline(string(buf)), full)
		}
		buf, full = buf[:0], false
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// Keep the child from blocking on a full pipe.
			_, _ = io.Copy(io.Discard, r)
			return err
		}
	}
}

// appendCapped appends chunk to buf without letting buf grow past limit
// bytes, cutting on a rune boundary, and reports whether the cap was hit.
// limit <= 0 means no cap.
func appendCapped(buf, chunk []byte, limit int) ([]byte, bool) {
	if limit <= 0 {
		return append(buf, chunk...), false
	}
	room := limit - len(buf)
	if len(chunk) <= room {
		return append(buf, chunk...), false
	}
	buf = append(buf, chunk[:room]...)
	// Drop a rune left incomplete by the cut.
	for len(buf) > 0 {
		r, size := utf8.DecodeLastRune(buf)
		if r != utf8.RuneError || size > 1 {
			break
		}
		buf = buf[:len(buf)-1]
	}
	return buf, true
}

// trimNewline strips one trailing "\n" and, if present, the "\r" of a
// CRLF pair. Other trailing whitespace is kept.
func trimNewline(line string) string {
	trimmed, ok := strings.CutSuffix(line, "\n")
	if !ok {
		return line
	}
	return strings.TrimSuffix(trimmed, "\r")
}

// limitLines keeps lines until their total size (terminators included)
// would exceed limit, then silently drops the rest.
type limitLines struct {
	limit     int
	size      int
	lines     []string
	truncated bool
}

// add keeps line if it fits. A cut line never fits: its full size was
// already past the limit.
func (l *limitLines) add(line string, cut bool) {
	if l.truncated {
		return
	}
	if cut {
		l.truncated = true
		return
	}
	n := len(line) + 1
	if l.limit > 0 && l.size+n > l.limit {
		l.truncated = true
		return
	}
	l.size += n
	l.lines = append(l.lines, line)
}
