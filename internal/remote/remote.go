// Package remote shares the task collection through Redis: the latest
// snapshot is kept under a key and every push is announced on a channel.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/amirbrooks/medtodo/internal/task"
)

var ErrNoSnapshot = errors.New("no remote snapshot")

// OriginPrefix marks changes applied from a remote snapshot.
const OriginPrefix = "remote:"

const reconnectDelay = time.Second

// IsRemote reports whether origin was produced by a remote snapshot.
func IsRemote(origin string) bool {
	return strings.HasPrefix(origin, OriginPrefix)
}

// Snapshot is the payload stored under the key and published on the channel.
type Snapshot struct {
	Origin   string      `json:"origin"`
	PushedAt time.Time   `json:"pushedAt"`
	Tasks    []task.Task `json:"tasks"`
}

type Options struct {
	Key     string
	Channel string
	// Origin identifies this process; a fresh one is generated when empty.
	Origin string
	Logger *log.Entry
}

type Syncer struct {
	rc      *redis.Client
	key     string
	channel string
	origin  string
	logger  *log.Entry
	now     func() time.Time
}

func New(rc *redis.Client, opts Options) *Syncer {
	origin := strings.TrimSpace(opts.Origin)
	if origin == "" {
		origin = NewOrigin()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Syncer{
		rc:      rc,
		key:     opts.Key,
		channel: opts.Channel,
		origin:  origin,
		logger:  logger.WithField("origin", origin),
		now:     time.Now,
	}
}

func NewOrigin() string {
	return strings.ToLower(ulid.Make().String())
}

func (s *Syncer) Origin() string { return s.origin }

// Push stores tasks as the current snapshot and announces it.
func (s *Syncer) Push(ctx context.Context, tasks []task.Task) error {
	data, err := json.Marshal(Snapshot{Origin: s.origin, PushedAt: s.now().UTC(), Tasks: task.Clone(tasks)})
	if err != nil {
		return err
	}
	_, err = s.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key, data, 0)
		pipe.Publish(ctx, s.channel, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("push snapshot: %w", err)
	}
	s.logger.WithField("tasks", len(tasks)).Debug("snapshot pushed")
	return nil
}

// Pull fetches the stored snapshot.
func (s *Syncer) Pull(ctx context.Context) (Snapshot, error) {
	data, err := s.rc.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("pull snapshot: %w", err)
	}
	return decodeSnapshot(data)
}

func decodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	for i := range snap.Tasks {
		snap.Tasks[i] = snap.Tasks[i].Normalize()
	}
	if snap.Tasks == nil {
		snap.Tasks = []task.Task{}
	}
	return snap, nil
}

// Subscribe delivers snapshots pushed by other origins until ctx is done,
// resubscribing if the channel closes.
func (s *Syncer) Subscribe(ctx context.Context, fn func(Snapshot)) {
	for {
		sub := s.rc.Subscribe(ctx, s.channel)
		s.receive(ctx, sub.Channel(), fn)
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Syncer) receive(ctx context.Context, ch <-chan *redis.Message, fn func(Snapshot)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			snap, err := decodeSnapshot([]byte(msg.Payload))
			if err != nil {
				s.logger.WithError(err).Warn("dropping malformed snapshot")
				continue
			}
			if snap.Origin == s.origin {
				continue
			}
			s.logger.WithFields(log.Fields{"from": snap.Origin, "tasks": len(snap.Tasks)}).Info("remote snapshot received")
			fn(snap)
		}
	}
}
