package transport

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
)

// ErrClosed is returned by operations on a closed stream.
var ErrClosed = errors.New("transport closed")

// Stream is a duplex byte stream. Closing it ends both directions.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

type stream struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

// NewStream joins a reader and a writer into a Stream. Close closes each
// of them that is an io.Closer, writer first.
func NewStream(r io.Reader, w io.Writer) Stream {
	s := &stream{Reader: r, Writer: w}
	if c, ok := w.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	if c, ok := r.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	return s
}

func (s *stream) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stdio returns the process's stdin and stdout as a Stream. Logs must go
// elsewhere, since stdout carries the records.
func Stdio() Stream {
	return NewStream(os.Stdin, os.Stdout)
}

// Pipe returns two connected in-memory streams. Bytes written to one are
// read from the other; closing one ends the peer's input with io.EOF.
func Pipe() (Stream, Stream) {
	aR, bW := io.Pipe()
	bR, aW := io.Pipe()
	return &pipeEnd{r: aR, w: aW}, &pipeEnd{r: bR, w: bW}
}

type pipeEnd struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipeEnd) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeEnd) Write(b []byte) (int, error) { return p.w.Write(b) }

func (p *pipeEnd) Close() error {
	p.w.Close()
	return p.r.Close()
}

// lineWriter buffers written bytes and hands each complete line, without
// its newline, to send. When send fails, Write reports how much of p went
// out in earlier lines and discards everything not yet sent.
type lineWriter struct {
	mu   sync.Mutex
	buf  []byte
	send func(line []byte) error
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	held := len(w.buf)
	w.buf = append(w.buf, p...)
	sent := 0
	for {
		i := bytes.IndexByte(w.buf[sent:], '\n')
		if i < 0 {
			w.buf = append(w.buf[:0], w.buf[sent:]...)
			return len(p), nil
		}
		end := sent + i
		if err := w.send(w.buf[sent:end]); err != nil {
			w.buf = w.buf[:0]
			return max(sent-held, 0), err
		}
		sent = end + 1
	}
}

// messageReader turns a sequence of messages into a byte stream with a
// newline after each message.
type messageReader struct {
	next func() ([]byte, error)
	cur  []byte
}

func (r *messageReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(r.cur) == 0 {
		msg, err := r.next()
		if err != nil {
			return 0, err
		}
		r.cur = make([]byte, len(msg)+1)
		copy(r.cur, msg)
		r.cur[len(msg)] = '\n'
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}
