package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/texmacros/internal/index"
	"github.com/leapstack-labs/texmacros/internal/testutil"
)

// recorder is an index.Listener that logs the file events it receives.
type recorder struct {
	mu     sync.Mutex
	events []string
	ch     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 64)}
}

func (r *recorder) add(kind string, paths []string) {
	r.mu.Lock()
	for _, p := range paths {
		r.events = append(r.events, kind+" "+filepath.Base(p))
	}
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) DocumentOpened(index.Document)  {}
func (r *recorder) DocumentChanged(index.Document) {}
func (r *recorder) DocumentSaved(index.Document)   {}
func (r *recorder) DocumentClosed(string)          {}
func (r *recorder) FilesCreated(p []string)        { r.add("created", p) }
func (r *recorder) FilesChanged(p []string)        { r.add("changed", p) }
func (r *recorder) FilesDeleted(p []string)        { r.add("deleted", p) }
func (r *recorder) FilesRenamed(rs []index.Rename) {
	paths := make([]string, len(rs))
	for i, rn := range rs {
		paths[i] = rn.Old
	}
	r.add("renamed", paths)
}

func texOnly(path string) bool { return strings.HasSuffix(path, ".tex") }

func TestRecordAndFlush(t *testing.T) {
	tests := []struct {
		name   string
		events []fsnotify.Event
		want   []string
	}{
		{
			name: "create then write is a creation",
			events: []fsnotify.Event{
				{Name: "/p/a.tex", Op: fsnotify.Create},
				{Name: "/p/a.tex", Op: fsnotify.Write},
			},
			want: []string{"created a.tex"},
		},
		{
			name: "write",
			events: []fsnotify.Event{
				{Name: "/p/a.tex", Op: fsnotify.Write},
				{Name: "/p/a.tex", Op: fsnotify.Write},
			},
			want: []string{"changed a.tex"},
		},
		{
			name: "delete wins",
			events: []fsnotify.Event{
				{Name: "/p/a.tex", Op: fsnotify.Write},
				{Name: "/p/a.tex", Op: fsnotify.Remove},
			},
			want: []string{"deleted a.tex"},
		},
		{
			name: "replaced file is a change",
			events: []fsnotify.Event{
				{Name: "/p/a.tex", Op: fsnotify.Remove},
				{Name: "/p/a.tex", Op: fsnotify.Create},
			},
			want: []string{"changed a.tex"},
		},
		{
			name: "rename",
			events: []fsnotify.Event{
				{Name: "/p/old.tex", Op: fsnotify.Rename},
				{Name: "/p/new.tex", Op: fsnotify.Create},
			},
			want: []string{"created new.tex", "renamed old.tex"},
		},
		{
			name: "filtered",
			events: []fsnotify.Event{
				{Name: "/p/a.log", Op: fsnotify.Write},
				{Name: "/p/a.tex", Op: fsnotify.Chmod},
				{Name: "/p/chapters", Op: fsnotify.Remove},
			},
			want: []string{"deleted chapters"},
		},
		{
			name: "batch order",
			events: []fsnotify.Event{
				{Name: "/p/d.tex", Op: fsnotify.Remove},
				{Name: "/p/c.tex", Op: fsnotify.Write},
				{Name: "/p/b.tex", Op: fsnotify.Create},
				{Name: "/p/a.tex", Op: fsnotify.Create},
			},
			want: []string{"created a.tex", "created b.tex", "changed c.tex", "deleted d.tex"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New("/p", WithFilter(texOnly), WithLogger(testutil.NewTestLogger(t)))
			rec := newRecorder()
			w.Subscribe(rec)

			for _, ev := range tt.events {
				w.record(ev)
			}
			w.flush()

			assert.Equal(t, tt.want, rec.snapshot())
		})
	}
}

func TestFlushEmptyBatchIsSilent(t *testing.T) {
	w := New("/p")
	rec := newRecorder()
	w.Subscribe(rec)

	w.flush()
	assert.Empty(t, rec.snapshot())
}

func TestOpenDocuments(t *testing.T) {
	assert.Nil(t, New("/p").OpenDocuments())
}

func TestRun_DeliversDiskChanges(t *testing.T) {
	dir := testutil.WriteProject(t, map[string]string{"main.tex": ""})

	w := New(dir,
		WithFilter(texOnly),
		WithDebounce(20*time.Millisecond),
		WithLogger(testutil.NewTestLogger(t)),
	)
	rec := newRecorder()
	w.Subscribe(rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	// Give the watcher time to register the tree.
	require.Eventually(t, func() bool {
		testutil.WriteFile(t, filepath.Join(dir, "sub", "new.tex"), `\newcommand{\x}{}`)
		select {
		case <-rec.ch:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	events := rec.snapshot()
	require.NotEmpty(t, events)
	assert.Contains(t, []string{"created new.tex", "changed new.tex"}, events[0])
}
