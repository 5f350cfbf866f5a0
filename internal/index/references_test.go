package index

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/texmacros/internal/macro"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestFindReferences_Boundary(t *testing.T) {
	fs := newMemFS(map[string]string{
		"/proj/main.tex": "\\foo \\foobar \\foo{x} \\foo@inner\n\\foo2 \\Foo \\foo",
	})
	ix := newTestIndex(t, fs)
	ix.Initialize(nil, mainFile("/proj/main.tex"))

	refs := ix.FindReferences(context.Background(), "foo")

	var got []macro.Location
	for _, r := range refs {
		got = append(got, r.Location)
		assert.Equal(t, 4, r.Length)
	}
	// Control words are letters only, so \foo2 is \foo followed by "2".
	assert.Equal(t, []macro.Location{
		{File: "/proj/main.tex", Line: 1, Column: 0},
		{File: "/proj/main.tex", Line: 1, Column: 13},
		{File: "/proj/main.tex", Line: 2, Column: 0},
		{File: "/proj/main.tex", Line: 2, Column: 11},
	}, got)
}

func TestFindReferences_AtSignNames(t *testing.T) {
	fs := newMemFS(map[string]string{
		"/proj/main.tex": `\my@cmd \my@cmdx \my@cmd{}`,
	})
	ix := newTestIndex(t, fs)
	ix.Initialize(nil, mainFile("/proj/main.tex"))

	refs := ix.FindReferences(context.Background(), "my@cmd")
	require.Len(t, refs, 2)
	assert.Equal(t, 0, refs[0].Column)
	assert.Equal(t, 17, refs[1].Column)
}

func TestFindReferences_UTF16Columns(t *testing.T) {
	fs := newMemFS(map[string]string{
		"/proj/main.tex": "żółw 😀 \\R",
	})
	ix := newTestIndex(t, fs)
	ix.Initialize(nil, mainFile("/proj/main.tex"))

	refs := ix.FindReferences(context.Background(), "R")
	require.Len(t, refs, 1)
	// żółw is 4 units, the emoji is a surrogate pair.
	assert.Equal(t, 8, refs[0].Column)
}

func TestFindReferences_OpenBuffersShadowDisk(t *testing.T) {
	fs := newMemFS(map[string]string{
		"/proj/main.tex":  `\R \R`,
		"/proj/other.tex": `\R`,
	})
	host := &memHost{}
	host.open(newDoc("/proj/main.tex", "edited\n\\R"))

	ix := newTestIndex(t, fs)
	ix.Initialize(host, mainFile("/proj/main.tex"))

	refs := ix.FindReferences(context.Background(), "R")
	require.Len(t, refs, 2)

	assert.Equal(t, macro.Location{File: "/proj/main.tex", Line: 2, Column: 0}, refs[0].Location)
	assert.Equal(t, macro.Location{File: "/proj/other.tex", Line: 1, Column: 0}, refs[1].Location)
}

func TestFindReferences_Cache(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	fs := newMemFS(map[string]string{
		"/proj/main.tex": `\foo \foo`,
	})
	ix := newTestIndex(t, fs, WithClock(clock.Now), WithReferenceTTL(2*time.Second))
	ix.Initialize(nil, mainFile("/proj/main.tex"))
	ctx := context.Background()

	first := ix.FindReferences(ctx, "foo")
	require.Len(t, first, 2)
	_, reads := fs.counts()

	clock.Advance(time.Second)
	second := ix.FindReferences(ctx, "foo")
	_, readsAfter := fs.counts()
	assert.Equal(t, reads, readsAfter, "a hit within the TTL must not rescan")
	assert.Same(t, &first[0], &second[0])

	// Invalidation drops the entry even inside the TTL.
	fs.set("/proj/main.tex", `\foo`)
	ix.MarkDirty()
	third := ix.FindReferences(ctx, "foo")
	assert.Len(t, third, 1)
	_, readsAfter = fs.counts()
	assert.Greater(t, readsAfter, reads)

	// Expiry.
	_, reads = fs.counts()
	clock.Advance(3 * time.Second)
	ix.FindReferences(ctx, "foo")
	_, readsAfter = fs.counts()
	assert.Greater(t, readsAfter, reads)
}

func TestFindReferences_EditClearsCache(t *testing.T) {
	ix := newTestIndex(t, newMemFS(map[string]string{}))
	ix.Initialize(nil, nil)
	ctx := context.Background()

	ix.DocumentOpened(newDoc("/p/a.tex", `\x`))
	require.Len(t, ix.FindReferences(ctx, "x"), 1)

	ix.DocumentChanged(newDoc("/p/a.tex", `\x \x \x`))
	assert.Len(t, ix.FindReferences(ctx, "x"), 3)
}

func TestFindReferences_WorkspaceRootFallback(t *testing.T) {
	fs := newMemFS(map[string]string{
		"/ws/notes/a.tex": `\todo{one}`,
		"/ws/b.tex":       `\todo{two}`,
	})
	ix := newTestIndex(t, fs, WithWorkspaceRoot("/ws"))
	ix.Initialize(nil, mainFile(""))

	refs := ix.FindReferences(context.Background(), "todo")
	assert.Len(t, refs, 2)
}

func TestReferenceCache_StalePutIsDropped(t *testing.T) {
	c := &referenceCache{ttl: time.Minute, now: time.Now, entries: map[string]referenceEntry{}}

	_, gen, ok := c.get("a")
	require.False(t, ok)

	c.clear()
	c.put("a", []Reference{{}}, gen)

	_, _, ok = c.get("a")
	assert.False(t, ok)
}
