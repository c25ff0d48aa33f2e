package jsonrpc

import (
	"context"
	"io"
	"sync"
)

// DefaultWriteQueueSize is the number of frames that may wait for the
// writer before submitters block.
const DefaultWriteQueueSize = 100

type writeRequest struct {
	data []byte
	done chan error
}

// serialWriter is the single lane every outgoing frame passes through. One
// goroutine owns the stream, so a frame is written completely before the
// next begins and frames are written in submission order.
type serialWriter struct {
	w     io.Writer
	queue chan writeRequest
	quit  chan struct{}
	once  sync.Once
}

func newSerialWriter(w io.Writer, depth int) *serialWriter {
	if depth < 0 {
		depth = 0
	}
	s := &serialWriter{
		w:     w,
		queue: make(chan writeRequest, depth),
		quit:  make(chan struct{}),
	}
	go s.run()
	return s
}

// submit queues data and waits for its write. A failed write is reported
// only to its own submitter; later frames are still attempted. If ctx ends
// after the frame was queued, the frame may still be written.
func (s *serialWriter) submit(ctx context.Context, data []byte) error {
	req := writeRequest{data: data, done: make(chan error, 1)}

	select {
	case <-s.quit:
		return ErrClosed
	default:
	}

	select {
	case s.queue <- req:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-s.quit:
		// A write stuck in the sink must not hold the submitter past close.
		select {
		case err := <-req.done:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *serialWriter) run() {
	for {
		select {
		case <-s.quit:
			s.drain()
			return
		default:
		}

		select {
		case req := <-s.queue:
			select {
			case <-s.quit:
				req.done <- ErrClosed
				s.drain()
				return
			default:
			}
			req.done <- s.write(req.data)
		case <-s.quit:
			s.drain()
			return
		}
	}
}

// drain fails every frame still queued at shutdown.
func (s *serialWriter) drain() {
	for {
		select {
		case req := <-s.queue:
			req.done <- ErrClosed
		default:
			return
		}
	}
}

func (s *serialWriter) write(data []byte) error {
	for len(data) > 0 {
		n, err := s.w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		data = data[n:]
	}
	if f, ok := s.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// close stops the lane. No frame starts after close returns; a write
// already in the sink is left to finish or fail on its own.
func (s *serialWriter) close() {
	s.once.Do(func() {
		close(s.quit)
	})
}
