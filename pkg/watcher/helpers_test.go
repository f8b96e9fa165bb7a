package watcher

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/0xmhha/foldersync/pkg/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

// fakeEntity is a minimal tree node.
type fakeEntity struct {
	path string
	dir  bool

	mu       sync.Mutex
	children map[string]*fakeEntity
}

func newFakeEntity(path string, dir bool) *fakeEntity {
	return &fakeEntity{path: path, dir: dir, children: make(map[string]*fakeEntity)}
}

func (e *fakeEntity) IsContainer() bool   { return e.dir }
func (e *fakeEntity) BackingPath() string { return e.path }

func (e *fakeEntity) ResolveChild(name string) (Entity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	child, ok := e.children[name]
	if !ok {
		return nil, false
	}
	return child, true
}

func (e *fakeEntity) addChild(name string, dir bool) *fakeEntity {
	e.mu.Lock()
	defer e.mu.Unlock()

	child := newFakeEntity(filepath.Join(e.path, name), dir)
	e.children[name] = child
	return child
}

// fakeBackend simulates the notification facility.
type fakeBackend struct {
	mu      sync.Mutex
	added   []string
	removed []string
	addErr  error

	events    chan fsnotify.Event
	errors    chan error
	closed    bool
	closeOnce sync.Once
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		events: make(chan fsnotify.Event, 1024),
		errors: make(chan error, 16),
	}
}

func (b *fakeBackend) Add(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.addErr != nil {
		return b.addErr
	}
	b.added = append(b.added, path)
	return nil
}

func (b *fakeBackend) Remove(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.removed = append(b.removed, path)
	return nil
}

func (b *fakeBackend) Events() <-chan fsnotify.Event { return b.events }
func (b *fakeBackend) Errors() <-chan error          { return b.errors }

func (b *fakeBackend) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.events)
		close(b.errors)
	})
	return nil
}

func (b *fakeBackend) emit(path string, op fsnotify.Op) {
	b.events <- fsnotify.Event{Name: path, Op: op}
}

func (b *fakeBackend) removedPaths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.removed...)
}

// queueExecutor collects posted tasks; the test goroutine plays the
// consumer by running them.
type queueExecutor struct {
	tasks  chan func()
	closed bool
	mu     sync.Mutex
}

func newQueueExecutor() *queueExecutor {
	return &queueExecutor{tasks: make(chan func(), 64)}
}

func (e *queueExecutor) setClosed(closed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = closed
}

func (e *queueExecutor) Post(task func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	select {
	case e.tasks <- task:
		return true
	default:
		return false
	}
}

// runNext waits for one posted task and runs it on the caller.
func (e *queueExecutor) runNext(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case task := <-e.tasks:
		task()
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a posted task")
	}
}

// expectIdle asserts that nothing is posted within d.
func (e *queueExecutor) expectIdle(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case <-e.tasks:
		t.Fatal("unexpected task posted")
	case <-time.After(d):
	}
}

// recorder is a Handler that remembers every call.
type recorder struct {
	mu      sync.Mutex
	updates []PendingUpdate
	fail    map[Entity]error
	panics  map[Entity]bool
}

func newRecorder() *recorder {
	return &recorder{fail: make(map[Entity]error), panics: make(map[Entity]bool)}
}

func (r *recorder) OnEntityChanged(e Entity, kind ChangeKind) error {
	r.mu.Lock()
	r.updates = append(r.updates, PendingUpdate{Kind: kind, Entity: e})
	err := r.fail[e]
	shouldPanic := r.panics[e]
	r.mu.Unlock()

	if shouldPanic {
		panic("boom")
	}
	return err
}

func (r *recorder) calls() []PendingUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]PendingUpdate(nil), r.updates...)
}

var errUnavailable = errors.New("inotify instance limit reached")

type harness struct {
	w       *Watcher
	backend *fakeBackend
	exec    *queueExecutor
	rec     *recorder
	root    *fakeEntity
}

// newHarness builds a running watcher over a fake backend with a real
// temporary root folder registered.
func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	return newLoggedHarness(t, logger.Noop(), mutate)
}

func newLoggedHarness(t *testing.T, log logger.Logger, mutate func(*Config)) *harness {
	t.Helper()

	backend := newFakeBackend()
	cfg := Config{
		DebounceInterval: 20 * time.Millisecond,
		NewBackend:       func() (Backend, error) { return backend, nil },
	}
	if mutate != nil {
		mutate(&cfg)
	}

	exec := newQueueExecutor()
	rec := newRecorder()
	w, err := New(cfg, rec, exec, log)
	require.NoError(t, err)
	t.Cleanup(w.Shutdown)

	root := newFakeEntity(t.TempDir(), true)
	require.True(t, w.RegisterFolder(root))
	require.NoError(t, w.Start())

	return &harness{w: w, backend: backend, exec: exec, rec: rec, root: root}
}

// logBuffer is a goroutine-safe log sink.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

// lines returns the records containing substr.
func (b *logBuffer) lines(substr string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []string
	for _, line := range strings.Split(b.buf.String(), "\n") {
		if strings.Contains(line, substr) {
			out = append(out, line)
		}
	}
	return out
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0700))
}
