package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/amirbrooks/medtodo/internal/app"
	"github.com/amirbrooks/medtodo/internal/remote"
	"github.com/amirbrooks/medtodo/internal/store"
	"github.com/amirbrooks/medtodo/internal/task"
	"github.com/amirbrooks/medtodo/internal/view"
)

const connectTimeout = 5 * time.Second

func newSyncCmd(s *session) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Share the task list through Redis",
		Long: `Share the task list through Redis.

The latest snapshot lives under [sync] key and every push is announced on
[sync] channel. Set [sync] redis_addr in config.toml or pass --redis.`,
	}
	cmd.PersistentFlags().StringVar(&addr, "redis", "", "Redis address (default: [sync] redis_addr)")

	connect := func(ctx context.Context) (*remote.Syncer, func(), error) {
		cfg := s.ws.Config().Sync
		if strings.TrimSpace(addr) == "" {
			addr = cfg.RedisAddr
		}
		if strings.TrimSpace(addr) == "" {
			return nil, nil, usagef("sync: no Redis address; set [sync] redis_addr or pass --redis")
		}
		rc := redis.NewClient(&redis.Options{Addr: addr})
		pctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := rc.Ping(pctx).Err(); err != nil {
			_ = rc.Close()
			return nil, nil, fmt.Errorf("connect %s: %w", addr, err)
		}
		syncer := remote.New(rc, remote.Options{
			Key:     cfg.Key,
			Channel: cfg.Channel,
			Logger:  log.NewEntry(s.logger).WithField("redis", addr),
		})
		return syncer, func() { _ = rc.Close() }, nil
	}

	push := &cobra.Command{
		Use:   "push",
		Short: "Publish the local task list",
		Args:  exactArgs(0, "sync push"),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, closeFn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			tasks := s.ctrl.Snapshot()
			if err := syncer.Push(cmd.Context(), tasks); err != nil {
				return err
			}
			s.printf("Pushed %d task%s.\n", len(tasks), plural(len(tasks)))
			return nil
		},
	}

	var merge bool
	pull := &cobra.Command{
		Use:   "pull",
		Short: "Replace (or merge into) the local task list with the remote snapshot",
		Args:  exactArgs(0, "sync pull [--merge]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, closeFn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			snap, err := syncer.Pull(cmd.Context())
			if errors.Is(err, remote.ErrNoSnapshot) {
				s.printf("No remote snapshot yet.\n")
				return nil
			}
			if err != nil {
				return err
			}
			origin := remote.OriginPrefix + snap.Origin
			if merge {
				n, err := s.ctrl.Merge(snap.Tasks, origin)
				s.printf("Merged %d new task%s.\n", n, plural(n))
				return err
			}
			err = s.ctrl.Replace(snap.Tasks, origin)
			s.printf("Pulled %d task%s.\n", len(snap.Tasks), plural(len(snap.Tasks)))
			return err
		},
	}
	pull.Flags().BoolVar(&merge, "merge", false, "Only add tasks whose IDs are new")

	var noRedis bool
	var render bool
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Stay running: push local edits, apply remote and external file changes",
		Args:  exactArgs(0, "sync watch [--no-redis] [--render]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return s.watch(ctx, !noRedis, render, connect)
		},
	}
	watch.Flags().BoolVar(&noRedis, "no-redis", false, "Only watch the tasks file")
	watch.Flags().BoolVar(&render, "render", false, "Print today's summary after every change")

	cmd.AddCommand(push, pull, watch)
	return cmd
}

type connectFunc func(ctx context.Context) (*remote.Syncer, func(), error)

func (s *session) watch(ctx context.Context, useRedis, render bool, connect connectFunc) error {
	logger := log.NewEntry(s.logger)

	if render {
		s.ctrl.Subscribe(app.ObserverFunc(func(c app.Change) {
			fmt.Fprintf(s.out, "\n[%s from %s]\n%s\n", c.Reason, c.Origin, view.RenderToday(c.Tasks, timeNow(), view.RenderOptions{}))
		}))
	}

	w, err := store.NewWatcher(s.ws, 0, logger, func(tasks []task.Task) {
		if err := s.ctrl.Replace(tasks, app.OriginFile); err != nil {
			logger.WithError(err).Warn("apply file change")
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()
	if err := w.Start(ctx); err != nil {
		return err
	}

	if useRedis {
		syncer, closeFn, err := connect(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		pusher := remote.NewPusher(syncer)
		s.ctrl.Subscribe(pusher)
		go pusher.Run(ctx)
		go syncer.Subscribe(ctx, func(snap remote.Snapshot) {
			if err := s.ctrl.Replace(snap.Tasks, remote.OriginPrefix+snap.Origin); err != nil {
				logger.WithError(err).Warn("apply remote snapshot")
			}
		})
		logger.WithField("origin", syncer.Origin()).Info("syncing through redis")
	}

	logger.WithField("root", s.ws.Root).Info("watching; press Ctrl-C to stop")
	<-ctx.Done()
	return nil
}
