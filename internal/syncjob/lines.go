package syncjob

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// lineReader yields newline-terminated lines of at most max bytes. A longer
// line is read to its end and discarded, so the stream stays aligned.
type lineReader struct {
	r   *bufio.Reader
	max int
	buf []byte
}

func newLineReader(r io.Reader, max int) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024), max: max}
}

// next returns the following line without its terminator. The slice is
// valid until the next call. oversized reports a dropped line; io.EOF
// means no more lines.
func (lr *lineReader) next() (line []byte, oversized bool, err error) {
	lr.buf = lr.buf[:0]
	read := false
	for {
		chunk, rerr := lr.r.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
		}
		if !oversized {
			lr.buf = append(lr.buf, chunk...)
			// room for a trailing \r\n
			if len(lr.buf) > lr.max+2 {
				oversized = true
				lr.buf = lr.buf[:0]
			}
		}
		switch {
		case rerr == nil:
			return lr.done(oversized)
		case errors.Is(rerr, bufio.ErrBufferFull):
			continue
		case errors.Is(rerr, io.EOF):
			if !read {
				return nil, false, io.EOF
			}
			return lr.done(oversized)
		default:
			return nil, false, rerr
		}
	}
}

func (lr *lineReader) done(oversized bool) ([]byte, bool, error) {
	if oversized {
		return nil, true, nil
	}
	line := bytes.TrimSuffix(lr.buf, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) > lr.max {
		return nil, true, nil
	}
	return line, false, nil
}
