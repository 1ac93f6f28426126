package writer

import (
	"bytes"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/codefuse/lspproxy/internal/proxy/frame"
)

func TestQueuePreservesEnqueueOrder(t *testing.T) {
	q := NewQueue()
	var buf bytes.Buffer
	s := NewSerializer(frame.NewWriter(&buf), q)

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	for i := 0; i < 50; i++ {
		q.Enqueue([]byte(`{"n":` + strconv.Itoa(i) + `}`))
	}
	q.Close()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	out := buf.String()
	for i := 0; i < 50; i++ {
		want := `{"n":` + strconv.Itoa(i) + `}`
		idx := strings.Index(out, want)
		if idx < 0 {
			t.Fatalf("missing frame %d in output", i)
		}
		out = out[idx+len(want):]
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue()
	var buf bytes.Buffer
	s := NewSerializer(frame.NewWriter(&buf), q)

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				q.Enqueue([]byte(`{}`))
			}
		}(p)
	}
	wg.Wait()
	q.Close()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if strings.Count(buf.String(), "Content-Length:") != 160 {
		t.Fatalf("expected 160 frames written, got %d", strings.Count(buf.String(), "Content-Length:"))
	}
}

func TestEnqueueAfterCloseIsNoop(t *testing.T) {
	q := NewQueue()
	q.Close()
	q.Enqueue([]byte(`{}`))
	if q.Len() != 0 {
		t.Fatalf("expected enqueue-after-close to be dropped")
	}
}

