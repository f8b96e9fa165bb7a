package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xmhha/foldersync/pkg/journal"
	"github.com/0xmhha/foldersync/pkg/logger"
	"github.com/0xmhha/foldersync/pkg/loop"
	"github.com/0xmhha/foldersync/pkg/tree"
	"github.com/0xmhha/foldersync/pkg/watcher"
)

// Mirror keeps a tree of folders synchronized with disk.
type Mirror struct {
	config  Config
	logger  logger.Logger
	journal journal.Journal

	tree    *tree.Tree
	loop    *loop.Loop
	watcher *watcher.Watcher

	mu      sync.Mutex
	running bool
	closed  bool
	stopped chan struct{}

	// Update channel for consumers
	updates     chan Update
	closeUpdate sync.Once

	updatesSent atomic.Uint64
	failures    atomic.Uint64
	resyncs     atomic.Uint64
	dropped     atomic.Uint64
}

// New creates a mirror. j may be nil, in which case an in-memory journal
// is used.
func New(cfg Config, j journal.Journal, log logger.Logger) (*Mirror, error) {
	cfg.setDefaults()
	if j == nil {
		j = journal.NewMemory()
	}

	t, err := tree.New(cfg.Tree, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create tree: %w", err)
	}

	m := &Mirror{
		config:  cfg,
		logger:  log.With("component", "mirror"),
		journal: j,
		tree:    t,
		loop:    loop.New(cfg.QueueSize, log),
		stopped: make(chan struct{}),
		updates: make(chan Update, cfg.UpdateBuffer),
	}

	wcfg := cfg.Watcher
	wcfg.OnOverflow = m.onOverflow
	w, err := watcher.New(wcfg, m, m.loop, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	m.watcher = w

	m.logger.Info("mirror created", "roots", cfg.Roots)
	return m, nil
}

// Run scans the roots, starts live tracking and then processes changes on
// the calling goroutine until ctx is done or Close is called.
func (m *Mirror) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.running {
		m.mu.Unlock()
		return ErrRunning
	}
	m.running = true
	m.mu.Unlock()

	defer close(m.stopped)
	defer m.watcher.Shutdown()

	bootErr := make(chan error, 1)
	m.loop.Post(func() {
		if err := m.bootstrap(); err != nil {
			bootErr <- err
			m.loop.Close()
		}
	})

	err := m.loop.Run(ctx)

	select {
	case berr := <-bootErr:
		return berr
	default:
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, loop.ErrClosed) {
		return nil
	}
	return err
}

// bootstrap runs on the loop: it scans every root, registers its folders
// and starts the watcher.
func (m *Mirror) bootstrap() error {
	for _, path := range m.config.Roots {
		root, err := m.tree.AddRoot(path)
		if err != nil {
			m.logger.Warn("skipping root", "path", path, "error", err)
			continue
		}

		registered := 0
		for _, folder := range m.tree.Folders(root) {
			if m.watcher.RegisterFolder(folder) {
				registered++
			}
		}

		// A fresh scan is a full synchronization, whatever the journal says.
		if err := m.journal.MarkClean(root.BackingPath()); err != nil {
			m.logger.Warn("failed to update journal", "root", root.BackingPath(), "error", err)
		}

		m.logger.Info("root mirrored",
			"path", root.BackingPath(),
			"nodes", m.tree.Len(),
			"watched_folders", registered)
	}

	if len(m.tree.Roots()) == 0 {
		return ErrNoRoots
	}

	if err := m.watcher.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	if m.watcher.Degraded() {
		m.logger.Warn("live tracking unavailable, use touch or resync to pick up changes")
	}
	return nil
}

// OnEntityChanged implements watcher.Handler. It runs on the loop.
func (m *Mirror) OnEntityChanged(e watcher.Entity, kind watcher.ChangeKind) error {
	n, ok := e.(*tree.Node)
	if !ok {
		return fmt.Errorf("%w: %s", ErrForeignEntity, e.BackingPath())
	}

	delta, err := m.synchronize(n, kind)
	if err != nil {
		m.failures.Add(1)
	} else if jerr := m.journal.RecordSync(n.BackingPath(), kind.String()); jerr != nil {
		m.logger.Warn("failed to record synchronization", "path", n.BackingPath(), "error", jerr)
	}

	m.publish(n.BackingPath(), kind.String(), delta, err)
	return err
}

// synchronize applies one change to the tree and keeps folder
// registrations in step.
func (m *Mirror) synchronize(n *tree.Node, kind watcher.ChangeKind) (tree.Delta, error) {
	if !kind.Full() {
		_, err := m.tree.Refresh(n)
		if err == nil {
			return tree.Delta{}, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return tree.Delta{}, err
		}
		// Gone since the event: resynchronize to detach it.
	}

	delta, err := m.tree.Synchronize(n)
	if err != nil {
		return tree.Delta{}, err
	}
	m.apply(delta)
	return delta, nil
}

func (m *Mirror) apply(delta tree.Delta) {
	for _, folder := range delta.RemovedFolders() {
		m.watcher.UnregisterFolder(folder)
	}
	for _, folder := range delta.AddedFolders() {
		m.watcher.RegisterFolder(folder)
	}
}

// publish sends an update to the updates channel without blocking.
func (m *Mirror) publish(path, kind string, delta tree.Delta, err error) {
	update := Update{
		Time:    time.Now(),
		Path:    path,
		Kind:    kind,
		Added:   len(delta.Added),
		Removed: len(delta.Removed),
	}
	if err != nil {
		update.Error = err.Error()
	}

	select {
	case m.updates <- update:
		m.updatesSent.Add(1)
	default:
		m.dropped.Add(1)
		m.logger.Warn("updates channel full, dropping update", "path", path)
	}
}

// onOverflow runs on the loop when change notifications were lost. The
// roots are marked dirty and resynchronized from disk.
func (m *Mirror) onOverflow() {
	for _, root := range m.tree.Roots() {
		if err := m.journal.MarkDirty(root.BackingPath()); err != nil {
			m.logger.Warn("failed to mark root dirty", "root", root.BackingPath(), "error", err)
		}
	}
	if err := m.resyncAll(); err != nil {
		m.logger.Error("resynchronization after overflow failed", "error", err)
	}
}

// resyncAll synchronizes every folder of every root. It runs on the loop.
func (m *Mirror) resyncAll() error {
	var errs []error
	for _, root := range m.tree.Roots() {
		if err := m.resyncRoot(root); err != nil {
			errs = append(errs, err)
		}
	}
	m.resyncs.Add(1)
	return errors.Join(errs...)
}

func (m *Mirror) resyncRoot(root *tree.Node) error {
	var (
		total tree.Delta
		errs  []error
	)

	for _, folder := range m.tree.Folders(root) {
		// Folders detached earlier in this pass are skipped.
		if current, ok := m.tree.Find(folder.BackingPath()); !ok || current != folder {
			continue
		}
		delta, err := m.tree.Synchronize(folder)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.apply(delta)
		total.Added = append(total.Added, delta.Added...)
		total.Removed = append(total.Removed, delta.Removed...)

		if !m.watcher.Degraded() && !m.watcher.IsRegistered(folder) {
			m.watcher.RegisterFolder(folder)
		}
	}

	err := errors.Join(errs...)
	if err == nil {
		if jerr := m.journal.MarkClean(root.BackingPath()); jerr != nil {
			m.logger.Warn("failed to mark root clean", "root", root.BackingPath(), "error", jerr)
		}
	} else {
		m.failures.Add(1)
	}

	m.publish(root.BackingPath(), KindResync, total, err)
	m.logger.Info("root resynchronized",
		"path", root.BackingPath(),
		"added", len(total.Added),
		"removed", len(total.Removed))
	return err
}

// Resync fully resynchronizes every root and waits for it to finish.
func (m *Mirror) Resync(ctx context.Context) error {
	return m.call(ctx, m.resyncAll)
}

// Touch tells the mirror that paths changed, for changes the caller knows
// about before any notification arrives. The whole pending set, these
// paths included, is synchronized before Touch returns.
//
// A path not yet in the tree is resolved to its nearest known ancestor.
func (m *Mirror) Touch(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	return m.call(ctx, func() error {
		nodes := make([]*tree.Node, 0, len(paths))
		for _, p := range paths {
			n, ok := m.nearest(p)
			if !ok {
				return fmt.Errorf("%w: %s", ErrOutsideRoots, p)
			}
			nodes = append(nodes, n)
		}

		if m.watcher.Degraded() {
			var errs []error
			for _, n := range nodes {
				errs = append(errs, m.OnEntityChanged(n, watcher.ChangeExplicit))
			}
			return errors.Join(errs...)
		}

		last := len(nodes) - 1
		for _, n := range nodes[:last] {
			m.watcher.EnqueueExplicit(n)
		}
		m.watcher.EnqueueExplicitThenDrainImmediately(nodes[last])
		return nil
	})
}

// nearest returns the node at path or its closest ancestor in the tree.
func (m *Mirror) nearest(path string) (*tree.Node, bool) {
	abs, err := filepath.Abs(tree.ExpandHome(path))
	if err != nil {
		return nil, false
	}

	for cur := abs; ; {
		if n, ok := m.tree.Find(cur); ok {
			return n, true
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, false
		}
		cur = parent
	}
}

func (m *Mirror) call(ctx context.Context, fn func() error) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := m.loop.Call(ctx, fn); err != nil {
		if errors.Is(err, loop.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Updates returns a channel of synchronization updates. It is closed by
// Close.
func (m *Mirror) Updates() <-chan Update {
	return m.updates
}

// Tree returns the mirrored tree. It must only be mutated on the loop.
func (m *Mirror) Tree() *tree.Tree {
	return m.tree
}

// Stats returns a snapshot of the mirror.
func (m *Mirror) Stats() Stats {
	return Stats{
		Roots:    len(m.tree.Roots()),
		Nodes:    m.tree.Len(),
		Watched:  m.watcher.RegisteredCount(),
		Updates:  m.updatesSent.Load(),
		Failures: m.failures.Load(),
		Resyncs:  m.resyncs.Load(),
		Dropped:  m.dropped.Load(),
		Degraded: m.watcher.Degraded(),
		Watcher:  m.watcher.Metrics(),
	}
}

// Close stops the mirror, waits for Run to return and closes the updates
// channel. It is safe to call more than once.
func (m *Mirror) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	running := m.running
	m.mu.Unlock()

	m.loop.Close()
	if running {
		<-m.stopped
	} else {
		m.watcher.Shutdown()
	}

	m.closeUpdate.Do(func() { close(m.updates) })
	m.logger.Info("mirror closed")
	return nil
}
