package dag

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/wheelgrid/internal/ctxlog"
)

func testCtx() context.Context {
	return ctxlog.Discard(context.Background())
}

// recorder is a RunFunc that records the order nodes ran in and fails the
// nodes listed in fail.
type recorder struct {
	mu    sync.Mutex
	order []string
	fail  map[string]error
}

func (r *recorder) run(_ context.Context, id string) error {
	r.mu.Lock()
	r.order = append(r.order, id)
	r.mu.Unlock()
	return r.fail[id]
}

func (r *recorder) ran(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.order {
		if o == id {
			return true
		}
	}
	return false
}

func (r *recorder) index(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, o := range r.order {
		if o == id {
			return i
		}
	}
	return -1
}

type observerFunc struct {
	mu       sync.Mutex
	started  []string
	finished map[string]State
}

func (o *observerFunc) NodeStarted(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, id)
}

func (o *observerFunc) NodeFinished(res NodeResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished == nil {
		o.finished = make(map[string]State)
	}
	o.finished[res.ID] = res.State
}

// pipeline builds the three-platform build/test/publish graph with a join
// node in front of publish.
func pipeline(t *testing.T) *Graph {
	t.Helper()
	g := New()
	for _, p := range []string{"osx", "windows", "linux"} {
		g.AddNode("build." + p)
		g.AddNode("test." + p)
		require.NoError(t, g.AddEdge("build."+p, "test."+p))
	}
	g.AddNode("tests[*]")
	g.AddNode("publish")
	for _, p := range []string{"osx", "windows", "linux"} {
		require.NoError(t, g.AddEdge("test."+p, "tests[*]"))
	}
	require.NoError(t, g.AddEdge("tests[*]", "publish"))
	return g
}

func TestExecutor_RunsInDependencyOrder(t *testing.T) {
	g := diamond(t)
	rec := &recorder{}

	res, err := NewExecutor(4).Run(testCtx(), g, rec.run)
	require.NoError(t, err)
	require.NoError(t, res.Err())

	assert.Equal(t, 4, res.Count(Succeeded))
	assert.Less(t, rec.index("a"), rec.index("b"))
	assert.Less(t, rec.index("a"), rec.index("c"))
	assert.Less(t, rec.index("b"), rec.index("d"))
	assert.Less(t, rec.index("c"), rec.index("d"))
}

func TestExecutor_IndependentNodesRunConcurrently(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")

	var inFlight, peak atomic.Int32
	barrier := make(chan struct{})
	var once sync.Once
	fn := func(ctx context.Context, id string) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		if n == 2 {
			once.Do(func() { close(barrier) })
		}
		select {
		case <-barrier:
		case <-time.After(2 * time.Second):
		}
		inFlight.Add(-1)
		return nil
	}

	res, err := NewExecutor(2).Run(testCtx(), g, fn)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, int32(2), peak.Load())
}

func TestExecutor_BuildFailureSkipsOnlyItsBranch(t *testing.T) {
	g := pipeline(t)
	boom := errors.New("compiler exploded")
	rec := &recorder{fail: map[string]error{"build.osx": boom}}
	obs := &observerFunc{}

	res, err := NewExecutor(3, WithObserver(obs)).Run(testCtx(), g, rec.run)
	require.NoError(t, err)

	assert.Equal(t, Failed, res.State("build.osx"))
	assert.Equal(t, Skipped, res.State("test.osx"))
	assert.Equal(t, Succeeded, res.State("test.windows"))
	assert.Equal(t, Succeeded, res.State("test.linux"))
	assert.Equal(t, Skipped, res.State("tests[*]"))
	assert.Equal(t, Skipped, res.State("publish"))
	assert.False(t, rec.ran("test.osx"))
	assert.False(t, rec.ran("publish"))

	skipped, _ := res.Get("test.osx")
	assert.ErrorIs(t, skipped.Err, ErrUpstream)
	assert.Equal(t, "build.osx", skipped.SkippedBy)

	runErr := res.Err()
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, boom)
	assert.NotContains(t, runErr.Error(), "test.osx", "skips are not root causes")

	assert.Equal(t, Failed, obs.finished["build.osx"])
	assert.Equal(t, Skipped, obs.finished["publish"])
	assert.Len(t, obs.finished, g.Len())
}

func TestExecutor_TestFailureSkipsPublish(t *testing.T) {
	g := pipeline(t)
	rec := &recorder{fail: map[string]error{"test.windows": errors.New("import failed")}}

	res, err := NewExecutor(2).Run(testCtx(), g, rec.run)
	require.NoError(t, err)

	assert.Equal(t, Succeeded, res.State("test.osx"))
	assert.Equal(t, Succeeded, res.State("test.linux"))
	assert.Equal(t, Skipped, res.State("publish"))
	assert.False(t, rec.ran("publish"))
	assert.Error(t, res.Err())
}

func TestExecutor_GateFalseIsNotAFailure(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")
	require.NoError(t, g.AddEdge("a", "b"))
	rec := &recorder{fail: map[string]error{"a": ErrGateFalse}}

	res, err := NewExecutor(1).Run(testCtx(), g, rec.run)
	require.NoError(t, err)
	assert.NoError(t, res.Err())
	assert.Equal(t, Skipped, res.State("a"))
	assert.Equal(t, Skipped, res.State("b"))
	assert.False(t, rec.ran("b"))
}

func TestExecutor_PanicFailsNode(t *testing.T) {
	g := New()
	g.AddNode("a")
	res, err := NewExecutor(1).Run(testCtx(), g, func(context.Context, string) error {
		panic("kaboom")
	})
	require.NoError(t, err)
	assert.Equal(t, Failed, res.State("a"))
	assert.ErrorContains(t, res.Err(), "kaboom")
}

func TestExecutor_CancellationSkipsUnscheduledNodes(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")
	require.NoError(t, g.AddEdge("a", "b"))

	ctx, cancel := context.WithCancel(testCtx())
	fn := func(_ context.Context, id string) error {
		if id == "a" {
			cancel()
		}
		return nil
	}

	res, err := NewExecutor(1).Run(ctx, g, fn)
	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.State("a"))
	assert.Equal(t, Skipped, res.State("b"))
	assert.ErrorIs(t, res.Err(), context.Canceled)
}

func TestExecutor_RejectsCycles(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "a"))

	_, err := NewExecutor(1).Run(testCtx(), g, (&recorder{}).run)
	assert.ErrorContains(t, err, "cycle")
}

func TestExecutor_EmptyGraph(t *testing.T) {
	res, err := NewExecutor(1).Run(testCtx(), New(), (&recorder{}).run)
	require.NoError(t, err)
	assert.NoError(t, res.Err())
	assert.Empty(t, res.Nodes())
}
