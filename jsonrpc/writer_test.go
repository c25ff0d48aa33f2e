package jsonrpc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingWriter captures every Write call and fails the ones listed.
type recordingWriter struct {
	mu        sync.Mutex
	writes    []string
	failOn    map[int]bool
	active    int
	maxActive int
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.active++
	if w.active > w.maxActive {
		w.maxActive = w.active
	}
	n := len(w.writes)
	w.writes = append(w.writes, string(p))
	fail := w.failOn[n]
	w.mu.Unlock()

	time.Sleep(time.Millisecond)

	w.mu.Lock()
	w.active--
	w.mu.Unlock()

	if fail {
		return 0, errors.New("disk on fire")
	}
	return len(p), nil
}

// shortWriter accepts at most three bytes per call.
type shortWriter struct {
	buf bytes.Buffer
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > 3 {
		p = p[:3]
	}
	return w.buf.Write(p)
}

func TestSerialWriter_SubmissionOrder(t *testing.T) {
	w := &recordingWriter{}
	s := newSerialWriter(w, 0)
	defer s.close()

	for i := 0; i < 10; i++ {
		if err := s.submit(context.Background(), []byte(fmt.Sprintf("frame-%d\n", i))); err != nil {
			t.Fatalf("submit(%d) error = %v", i, err)
		}
	}

	for i, got := range w.writes {
		want := fmt.Sprintf("frame-%d\n", i)
		if got != want {
			t.Errorf("write %d = %q, want %q", i, got, want)
		}
	}
}

func TestSerialWriter_OneWriterAtATime(t *testing.T) {
	w := &recordingWriter{}
	s := newSerialWriter(w, DefaultWriteQueueSize)
	defer s.close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.submit(context.Background(), []byte(fmt.Sprintf("%d\n", i)))
		}(i)
	}
	wg.Wait()

	if len(w.writes) != 50 {
		t.Errorf("got %d writes, want 50", len(w.writes))
	}
	if w.maxActive != 1 {
		t.Errorf("max concurrent writes = %d, want 1", w.maxActive)
	}
}

func TestSerialWriter_FailureIsolated(t *testing.T) {
	w := &recordingWriter{failOn: map[int]bool{1: true}}
	s := newSerialWriter(w, 0)
	defer s.close()

	errs := make([]error, 3)
	for i := range errs {
		errs[i] = s.submit(context.Background(), []byte(fmt.Sprintf("frame-%d\n", i)))
	}

	if errs[0] != nil {
		t.Errorf("frame 0 error = %v, want nil", errs[0])
	}
	if errs[1] == nil {
		t.Error("frame 1 should report the write failure")
	}
	if errs[2] != nil {
		t.Errorf("frame 2 error = %v, want nil (lane must stay open)", errs[2])
	}
}

func TestSerialWriter_CompletesShortWrites(t *testing.T) {
	w := &shortWriter{}
	s := newSerialWriter(w, 0)
	defer s.close()

	frame := `{"id":1,"result":"long enough"}` + "\n"
	if err := s.submit(context.Background(), []byte(frame)); err != nil {
		t.Fatalf("submit() error = %v", err)
	}
	if w.buf.String() != frame {
		t.Errorf("written = %q, want %q", w.buf.String(), frame)
	}
}

func TestSerialWriter_FlushesBufferedWriter(t *testing.T) {
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)
	s := newSerialWriter(bw, 0)
	defer s.close()

	if err := s.submit(context.Background(), []byte("hello\n")); err != nil {
		t.Fatalf("submit() error = %v", err)
	}
	if out.String() != "hello\n" {
		t.Errorf("buffered frame not flushed, got %q", out.String())
	}
}

func TestSerialWriter_SubmitAfterClose(t *testing.T) {
	s := newSerialWriter(&recordingWriter{}, 0)
	s.close()

	err := s.submit(context.Background(), []byte("late\n"))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("submit() after close error = %v, want ErrClosed", err)
	}
}

func TestSerialWriter_ContextCancelledWhileQueued(t *testing.T) {
	block := make(chan struct{})
	w := writerFunc(func(p []byte) (int, error) {
		<-block
		return len(p), nil
	})
	s := newSerialWriter(w, 0)
	defer func() {
		close(block)
		s.close()
	}()

	// Occupy the lane.
	go s.submit(context.Background(), []byte("first\n"))
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.submit(ctx, []byte("second\n"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("submit() error = %v, want DeadlineExceeded", err)
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestSerialWriter_FramesNeverInterleave(t *testing.T) {
	var out bytes.Buffer
	var mu sync.Mutex
	w := writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		// Write in two halves to expose interleaving if it were possible.
		half := len(p) / 2
		out.Write(p[:half])
		out.Write(p[half:])
		return len(p), nil
	})
	s := newSerialWriter(w, 8)
	defer s.close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.submit(context.Background(), []byte(strings.Repeat(fmt.Sprint(i%10), 32)+"\n"))
		}(i)
	}
	wg.Wait()

	for _, line := range strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n") {
		if line != strings.Repeat(line[:1], 32) {
			t.Errorf("interleaved frame: %q", line)
		}
	}
}

func TestSerialWriter_NothingStartsAfterClose(t *testing.T) {
	block := make(chan struct{})
	var mu sync.Mutex
	var writes []string
	w := writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		writes = append(writes, string(p))
		first := len(writes) == 1
		mu.Unlock()
		if first {
			<-block
		}
		return len(p), nil
	})
	s := newSerialWriter(w, 8)

	// The first frame occupies the sink; the rest wait in the queue.
	go s.submit(context.Background(), []byte("first\n"))
	time.Sleep(10 * time.Millisecond)

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func(i int) {
			errs <- s.submit(context.Background(), []byte(fmt.Sprintf("queued-%d\n", i)))
		}(i)
	}
	time.Sleep(20 * time.Millisecond)

	s.close()
	for i := 0; i < 3; i++ {
		if err := <-errs; !errors.Is(err, ErrClosed) {
			t.Errorf("queued submit error = %v, want ErrClosed", err)
		}
	}
	close(block)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(writes) != 1 {
		t.Errorf("writes = %q, want only the frame in flight at close", writes)
	}
}
