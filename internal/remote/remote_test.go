package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirbrooks/medtodo/internal/app"
	"github.com/amirbrooks/medtodo/internal/task"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	m, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

func newSyncer(rc *redis.Client, origin string) *Syncer {
	return New(rc, Options{Key: "medtodo:tasks", Channel: "medtodo:updates", Origin: origin})
}

func TestPullWithoutSnapshot(t *testing.T) {
	s := newSyncer(newRedis(t), "a")
	_, err := s.Pull(context.Background())
	assert.True(t, errors.Is(err, ErrNoSnapshot))
}

func TestPushThenPull(t *testing.T) {
	rc := newRedis(t)
	a := newSyncer(rc, "a")
	b := newSyncer(rc, "b")
	ctx := context.Background()

	require.NoError(t, a.Push(ctx, []task.Task{{ID: "1", Title: "Sign forms", Priority: "HIGH"}}))
	snap, err := b.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", snap.Origin)
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, "Sign forms", snap.Tasks[0].Title)
	assert.Equal(t, task.PriorityHigh, snap.Tasks[0].Priority)
}

func TestSubscribeSkipsOwnOrigin(t *testing.T) {
	rc := newRedis(t)
	a := newSyncer(rc, "a")
	b := newSyncer(rc, "b")

	var mu sync.Mutex
	var got []Snapshot
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Subscribe(ctx, func(s Snapshot) {
			mu.Lock()
			got = append(got, s)
			mu.Unlock()
		})
		close(done)
	}()
	// wait for subscription to start
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, a.Push(context.Background(), []task.Task{{ID: "mine"}}))
	require.NoError(t, b.Push(context.Background(), []task.Task{{ID: "theirs"}}))
	require.NoError(t, rc.Publish(context.Background(), "medtodo:updates", "not json").Err())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, "b", got[0].Origin)
	assert.Equal(t, "theirs", got[0].Tasks[0].ID)
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Subscribe did not exit")
	}
}

func TestPusherSkipsRemoteChanges(t *testing.T) {
	rc := newRedis(t)
	s := newSyncer(rc, "a")
	p := NewPusher(s)
	ctx := context.Background()

	p.Notify(app.Change{Reason: app.ReasonReplace, Origin: OriginPrefix + "b", Tasks: []task.Task{{ID: "echo"}}})
	require.NoError(t, p.Flush(ctx))
	_, err := s.Pull(ctx)
	assert.True(t, errors.Is(err, ErrNoSnapshot))

	p.Notify(app.Change{Reason: app.ReasonAdd, Origin: app.OriginLocal, Tasks: []task.Task{{ID: "old"}}})
	p.Notify(app.Change{Reason: app.ReasonAdd, Origin: app.OriginLocal, Tasks: []task.Task{{ID: "new"}, {ID: "old"}}})
	require.NoError(t, p.Flush(ctx))

	snap, err := s.Pull(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Tasks, 2, "only the newest queued collection is pushed")
}

func TestPusherRun(t *testing.T) {
	rc := newRedis(t)
	s := newSyncer(rc, "a")
	p := NewPusher(s)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Notify(app.Change{Reason: app.ReasonAdd, Origin: app.OriginLocal, Tasks: []task.Task{{ID: "x"}}})
	assert.Eventually(t, func() bool {
		_, err := s.Pull(context.Background())
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("remote:01h"))
	assert.False(t, IsRemote(app.OriginLocal))
	assert.False(t, IsRemote(app.OriginFile))
	assert.NotEqual(t, NewOrigin(), NewOrigin())
}
