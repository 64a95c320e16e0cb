package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"focusvault/internal/notification"
	"focusvault/internal/observability"
	"focusvault/internal/shared/config"
	"focusvault/internal/shared/logging"
	"focusvault/internal/shared/timer"
	"focusvault/internal/shared/utils"
	"focusvault/internal/shared/utils/id"
)

const metricsFlushInterval = 15 * time.Second

// Container wires the session manager to its collaborators for one CLI run.
type Container struct {
	Config   config.Config
	Logger   logging.Logger
	Manager  *timer.SessionManager
	Center   *notification.Center
	Notifier *notification.SessionNotifier
	Metrics  *observability.MetricsCollector
	Tracing  *observability.TracerProvider

	closers []io.Closer
}

type containerOptions struct {
	// console receives completion notices; nil disables the console channel.
	console io.Writer
	// stderr receives structured logs when verbose is set.
	stderr  io.Writer
	verbose bool
	logger  logging.Logger
	clock   timer.Clock
}

func buildContainer(cfg config.Config, opts containerOptions) (*Container, error) {
	strategy, err := id.ParseStrategy(cfg.Store.IDStrategy)
	if err != nil {
		return nil, err
	}
	id.SetStrategy(strategy)

	c := &Container{Config: cfg}
	c.Logger = c.newLogger(opts)

	c.Metrics, err = observability.NewMetricsCollector(cfg.Observability.Metrics)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	if tracing := cfg.Observability.Tracing; tracing.Enabled && tracing.Output != "" {
		if err := os.MkdirAll(filepath.Dir(tracing.Output), 0o755); err != nil {
			return nil, fmt.Errorf("create trace dir: %w", err)
		}
	}
	c.Tracing, err = observability.NewTracerProvider(cfg.Observability.Tracing)
	if err != nil {
		return nil, fmt.Errorf("create tracer: %w", err)
	}

	c.Center, err = c.newCenter(opts)
	if err != nil {
		_ = c.Cleanup(context.Background())
		return nil, err
	}

	var manager *timer.SessionManager
	notifierOpts := []notification.SessionOption{
		notification.WithHistory(notification.HistoryFunc(func() []timer.Record {
			return manager.List()
		})),
		notification.WithStreakMilestones(cfg.Notifications.StreakMilestones...),
		notification.WithChannels(channelNames(c.Center)...),
	}
	if goal := cfg.Timer.DailyGoal.Std(); goal > 0 {
		notifierOpts = append(notifierOpts, notification.WithDailyGoal(goal))
	}
	c.Notifier = notification.NewSessionNotifier(c.Center, notifierOpts...)

	managerOpts := []timer.ManagerOption{
		timer.WithNotifier(c.Notifier),
		timer.WithMetrics(c.Metrics),
		timer.WithTracer(c.Tracing.Tracer()),
	}
	if opts.clock != nil {
		managerOpts = append(managerOpts, timer.WithManagerClock(opts.clock))
	}
	manager, err = timer.NewSessionManager(timer.Config{
		Enabled:           true,
		StorePath:         cfg.Store.Dir,
		MaxActive:         cfg.Timer.MaxActive,
		AutoStartBreak:    cfg.Timer.AutoStartBreak,
		LongBreakEvery:    cfg.Timer.LongBreakEvery,
		ShortBreakSeconds: cfg.Timer.ShortBreak.Seconds(),
		LongBreakSeconds:  cfg.Timer.LongBreak.Seconds(),
		RecoverRunning:    cfg.Timer.RecoverRunning,
	}, logging.WithPrefix(c.Logger, "SessionManager"), managerOpts...)
	if err != nil {
		_ = c.Cleanup(context.Background())
		return nil, err
	}
	c.Manager = manager
	return c, nil
}

func (c *Container) newLogger(opts containerOptions) logging.Logger {
	if !logging.IsNil(opts.logger) {
		return opts.logger
	}
	file := utils.NewCategorizedLogger(utils.LogCategoryTimer, "CLI")
	file.SetLevel(utils.ParseLevel(c.Config.Observability.Logging.Level))
	if !opts.verbose || opts.stderr == nil {
		return logging.FromUtils(file)
	}
	structured := observability.NewLogger(observability.LogConfig{
		Level:  c.Config.Observability.Logging.Level,
		Format: c.Config.Observability.Logging.Format,
		Output: opts.stderr,
	})
	return logging.Multi(
		logging.FromUtils(file),
		logging.FromObservabilityWithComponent(structured, "cli"),
	)
}

func (c *Container) newCenter(opts containerOptions) (*notification.Center, error) {
	cfg := c.Config.Notifications
	center := notification.NewCenter()

	center.RegisterChannel(
		notification.NewLoggerChannel("log", logging.WithPrefix(c.Logger, "Notifications")),
		notification.ChannelConfig{Enabled: true, MinPriority: notification.PriorityLow, IsDefault: true},
	)

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("create notification log dir: %w", err)
		}
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open notification log: %w", err)
		}
		c.closers = append(c.closers, file)
		center.RegisterChannel(
			notification.NewLogChannel("file", file),
			notification.ChannelConfig{Enabled: true, MinPriority: notification.PriorityLow},
		)
	}

	if cfg.Console && opts.console != nil {
		center.RegisterChannel(
			notification.NewConsoleChannel("console", opts.console, cfg.Bell),
			notification.ChannelConfig{Enabled: true, MinPriority: notification.PriorityNormal, IsDefault: true},
		)
	}
	return center, nil
}

func channelNames(center *notification.Center) []string {
	channels := center.ListChannels()
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		if ch.Enabled {
			names = append(names, ch.Name)
		}
	}
	return names
}

// flushMetrics rewrites the metrics textfile periodically until ctx ends.
func (c *Container) flushMetrics(ctx context.Context) error {
	if !c.Config.Observability.Metrics.Enabled {
		return nil
	}
	ticker := time.NewTicker(metricsFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Metrics.WriteTextfile(); err != nil {
				c.Logger.Warn("metrics textfile write failed: %v", err)
			}
		}
	}
}

// Cleanup stops the manager, flushes telemetry and closes open files.
func (c *Container) Cleanup(ctx context.Context) error {
	if c.Manager != nil {
		c.Manager.Stop()
	}

	var errs []error
	if c.Metrics != nil {
		if err := c.Metrics.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Tracing != nil {
		if err := c.Tracing.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
