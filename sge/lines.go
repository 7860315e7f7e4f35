package sge

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// lineScanner is the part of bufio.Scanner the scan loop needs. Forward scans
// use forwardScanner, backward scans use reverseScanner.
type lineScanner interface {
	Scan() bool
	Text() string
	Err() error
}

const defaultChunkSize = 64 * 1024

// forwardScanner yields the lines of r in order. Unlike bufio.Scanner it does
// not fail on a line longer than maxLine: such a line is cut to maxLine+1
// bytes and the rest of it is read and dropped, so memory stays bounded and
// the caller can still tell the line was too long.
type forwardScanner struct {
	r       *bufio.Reader
	maxLine int
	line    []byte
	done    bool
	err     error
}

func newForwardScanner(r io.Reader, maxLine int) *forwardScanner {
	return &forwardScanner{
		r:       bufio.NewReaderSize(r, defaultChunkSize),
		maxLine: maxLine,
	}
}

func (s *forwardScanner) Scan() bool {
	if s.err != nil || s.done {
		return false
	}
	s.line = s.line[:0]
	for {
		chunk, err := s.r.ReadSlice('\n')
		if room := s.maxLine + 1 - len(s.line); room > 0 {
			s.line = append(s.line, chunk[:min(room, len(chunk))]...)
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			s.done = true
			if len(s.line) == 0 {
				return false
			}
			break
		}
		if err != nil {
			s.err = err
			return false
		}
		break
	}
	if n := len(s.line); n > 0 && s.line[n-1] == '\n' {
		s.line = s.line[:n-1]
	}
	s.line = dropCR(s.line)
	return true
}

func (s *forwardScanner) Text() string {
	return string(s.line)
}

func (s *forwardScanner) Err() error {
	return s.err
}

// reverseScanner yields the lines of r between offsets start and end, last
// line first. It reads chunkSize bytes at a time from the end, so memory use
// is bounded by the chunk size plus the longest line.
type reverseScanner struct {
	r         io.ReaderAt
	start     int64
	pos       int64
	chunkSize int

	// buf holds the unread bytes [pos, pos+len(buf)).
	buf   []byte
	line  []byte
	first bool
	done  bool
	err   error
}

func newReverseScanner(r io.ReaderAt, start, end int64, chunkSize int) *reverseScanner {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &reverseScanner{
		r:         r,
		start:     start,
		pos:       end,
		chunkSize: chunkSize,
		first:     true,
	}
}

func (s *reverseScanner) Scan() bool {
	if s.err != nil || s.done {
		return false
	}
	for {
		if i := bytes.LastIndexByte(s.buf, '\n'); i >= 0 {
			line := s.buf[i+1:]
			s.buf = s.buf[:i]
			first := s.first
			s.first = false
			// The newline ending the last line does not start another one.
			if first && len(line) == 0 {
				continue
			}
			s.line = dropCR(line)
			return true
		}
		if s.pos <= s.start {
			s.done = true
			if s.first && len(s.buf) == 0 {
				return false
			}
			s.first = false
			s.line = dropCR(s.buf)
			s.buf = nil
			return true
		}
		if err := s.readChunk(); err != nil {
			s.err = err
			return false
		}
	}
}

func (s *reverseScanner) readChunk() error {
	n := int64(s.chunkSize)
	if s.pos-s.start < n {
		n = s.pos - s.start
	}
	next := make([]byte, int(n)+len(s.buf))
	read, err := s.r.ReadAt(next[:n], s.pos-n)
	if int64(read) < n {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("failed to read %d bytes at offset %d: %w", n, s.pos-n, err)
	}
	copy(next[n:], s.buf)
	s.buf = next
	s.pos -= n
	return nil
}

func (s *reverseScanner) Text() string {
	return string(s.line)
}

func (s *reverseScanner) Err() error {
	return s.err
}

func dropCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}
	return b
}

// skipLines returns the byte offset just past the first n lines of r. If r
// has fewer than n lines the offset is the end of r.
func skipLines(r io.Reader, n int) (int64, error) {
	br := bufio.NewReader(r)
	var offset int64
	for i := 0; i < n; i++ {
		b, err := br.ReadSlice('\n')
		offset += int64(len(b))
		if err == bufio.ErrBufferFull {
			i--
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	return offset, nil
}
