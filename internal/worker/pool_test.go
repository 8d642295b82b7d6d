package worker

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errBadLine = errors.New("bad line")

// chunkResult carries the sequence of the chunk it came from
type chunkResult struct {
	seq   int
	lines int
	err   error
}

func (r *chunkResult) GetError() error {
	return r.err
}

// chunkJob counts the catalogue lines of one chunk, failing on a "!" line
type chunkJob struct {
	seq   int
	lines []string
	delay time.Duration
	ran   *int32
}

func (j *chunkJob) Execute(ctx context.Context) Result {
	if j.ran != nil {
		atomic.AddInt32(j.ran, 1)
	}
	if j.delay > 0 {
		select {
		case <-time.After(j.delay):
		case <-ctx.Done():
			return &chunkResult{seq: j.seq, err: ctx.Err()}
		}
	}
	n := 0
	for _, line := range j.lines {
		if strings.HasPrefix(line, "!") {
			return &chunkResult{seq: j.seq, err: errBadLine}
		}
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return &chunkResult{seq: j.seq, lines: n}
}

func chunks(lines []string, size int, ran *int32) []Job {
	var jobs []Job
	for seq, start := 0, 0; start < len(lines); seq, start = seq+1, start+size {
		end := start + size
		if end > len(lines) {
			end = len(lines)
		}
		jobs = append(jobs, &chunkJob{seq: seq, lines: lines[start:end], ran: ran})
	}
	return jobs
}

func TestNewPool_Workers(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{5, 5},
		{0, 1},
		{-3, 1},
	}
	for _, tt := range tests {
		if got := NewPool(context.Background(), tt.in).Workers(); got != tt.want {
			t.Errorf("NewPool(%d).Workers() = %d, want %d", tt.in, got, tt.want)
		}
	}

	//nolint:staticcheck // nil context falls back to Background
	if p := NewPool(nil, 2); p.ctx == nil {
		t.Error("nil context not replaced")
	}
}

func TestPool_SubmitAndWait(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	lines := []string{"06451-1643", "", "14396-6050", "00000+0000", "   ", "17153-2636"}
	var ran int32
	jobs := chunks(lines, 2, &ran)
	for _, job := range jobs {
		if !pool.Submit(job) {
			t.Fatal("Submit refused on a running pool")
		}
	}

	results := pool.Wait()
	if len(results) != len(jobs) {
		t.Fatalf("expected %d results, got %d", len(jobs), len(results))
	}
	if atomic.LoadInt32(&ran) != int32(len(jobs)) {
		t.Errorf("expected %d executed jobs, got %d", len(jobs), ran)
	}

	total := 0
	for _, r := range results {
		total += r.(*chunkResult).lines
	}
	if total != 4 {
		t.Errorf("expected 4 non-blank lines, got %d", total)
	}
}

func TestPool_RunRestoresOrderBySequence(t *testing.T) {
	lines := make([]string, 500)
	for i := range lines {
		lines[i] = "HIP"
	}
	var ran int32
	jobs := chunks(lines, 7, &ran)

	results := NewPool(context.Background(), 3).Run(jobs)
	if len(results) != len(jobs) {
		t.Fatalf("expected %d results, got %d", len(jobs), len(results))
	}
	if atomic.LoadInt32(&ran) != int32(len(jobs)) {
		t.Errorf("expected %d executed jobs, got %d", len(jobs), ran)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].(*chunkResult).seq < results[j].(*chunkResult).seq
	})
	total := 0
	for i, r := range results {
		cr := r.(*chunkResult)
		if cr.seq != i {
			t.Fatalf("missing chunk %d", i)
		}
		total += cr.lines
	}
	if total != len(lines) {
		t.Errorf("expected %d lines, got %d", len(lines), total)
	}
}

// gaugeJob records how many jobs run at once
type gaugeJob struct {
	current, peak *int32
	mu            *sync.Mutex
	done          *int32
}

func (j *gaugeJob) Execute(ctx context.Context) Result {
	n := atomic.AddInt32(j.current, 1)
	j.mu.Lock()
	if n > *j.peak {
		*j.peak = n
	}
	j.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	atomic.AddInt32(j.current, -1)
	atomic.AddInt32(j.done, 1)
	return &chunkResult{}
}

func TestPool_ConcurrencyBound(t *testing.T) {
	const workers = 3
	var current, peak, done int32
	var mu sync.Mutex

	jobs := make([]Job, 20)
	for i := range jobs {
		jobs[i] = &gaugeJob{current: &current, peak: &peak, mu: &mu, done: &done}
	}
	NewPool(context.Background(), workers).Run(jobs)

	if atomic.LoadInt32(&done) != int32(len(jobs)) {
		t.Errorf("expected %d completed jobs, got %d", len(jobs), done)
	}
	mu.Lock()
	defer mu.Unlock()
	if peak > workers {
		t.Errorf("peak concurrency %d exceeded %d workers", peak, workers)
	}
}

func TestPool_ErrorsAreResults(t *testing.T) {
	jobs := []Job{
		&chunkJob{seq: 0, lines: []string{"ok"}},
		&chunkJob{seq: 1, lines: []string{"ok", "!garbled"}},
	}
	results := NewPool(context.Background(), 2).Run(jobs)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	failed := 0
	for _, r := range results {
		if err := r.GetError(); err != nil {
			if !errors.Is(err, errBadLine) {
				t.Errorf("unexpected error %v", err)
			}
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 failed chunk, got %d", failed)
	}
}

func TestResultCollector(t *testing.T) {
	c := NewResultCollector()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%5 == 0 {
				err = errBadLine
			}
			c.Add(&chunkResult{seq: i, err: err})
		}(i)
	}
	wg.Wait()

	if got := len(c.Results()); got != 10 {
		t.Errorf("expected 10 results, got %d", got)
	}
	if got := len(c.Errors()); got != 2 {
		t.Errorf("expected 2 errors, got %d", got)
	}
}

func TestPool_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 2)
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Run(chunks([]string{"a", "b", "c"}, 1, nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run on a cancelled pool blocked")
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()
	pool.Shutdown()

	done := make(chan bool)
	go func() {
		done <- pool.Submit(&chunkJob{})
	}()

	select {
	case ok := <-done:
		if ok {
			t.Error("Submit accepted a job after Shutdown")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit after shutdown blocked")
	}
}

func TestPool_ShutdownInterruptsSlowChunk(t *testing.T) {
	pool := NewPool(context.Background(), 1)
	pool.Start()
	pool.Submit(&chunkJob{lines: []string{"slow"}, delay: 5 * time.Second})

	stopped := make(chan struct{})
	go func() {
		pool.Shutdown()
		for range pool.Results() {
		}
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Shutdown waited for the slow chunk")
	}
}
