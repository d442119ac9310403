// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/absmach/sparkplug-tck/config"
	"github.com/absmach/sparkplug-tck/events"
	"github.com/absmach/sparkplug-tck/topics"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("webhook notifier closed")

// GenericNotifier implements webhook notifications with worker pool and circuit breaker.
type GenericNotifier struct {
	cfg        config.WebhookConfig
	source     string
	endpoints  []endpointConfig
	eventQueue chan eventJob
	breakers   map[string]*gobreaker.CircuitBreaker
	sender     Sender
	logger     *slog.Logger

	// pending counts jobs that are queued, in flight or waiting for a retry.
	pending sync.WaitGroup
	workers sync.WaitGroup
	closed  atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

type endpointConfig struct {
	name         string
	url          string
	eventFilters map[string]bool
	topicFilters []string
	headers      map[string]string
	timeout      time.Duration
	retryConfig  config.RetryConfig
	limiter      *rate.Limiter // nil when unlimited
}

type eventJob struct {
	event    events.Event
	endpoint endpointConfig
	attempt  int
}

// NewNotifier creates a new generic webhook notifier. Source identifies this
// runner in event envelopes.
func NewNotifier(cfg config.WebhookConfig, source string, sender Sender, logger *slog.Logger) (*GenericNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		return nil, fmt.Errorf("sender cannot be nil")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	endpoints := make([]endpointConfig, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		eventFilters := make(map[string]bool, len(ep.Events))
		for _, eventType := range ep.Events {
			eventFilters[eventType] = true
		}

		timeout := cfg.Defaults.Timeout
		if ep.Timeout > 0 {
			timeout = ep.Timeout
		}

		retryConfig := cfg.Defaults.Retry
		if ep.Retry != nil {
			retryConfig = *ep.Retry
		}

		var limiter *rate.Limiter
		if ep.RateLimit > 0 {
			burst := ep.RateBurst
			if burst < 1 {
				burst = 1
			}
			limiter = rate.NewLimiter(rate.Limit(ep.RateLimit), burst)
		}

		endpoints = append(endpoints, endpointConfig{
			name:         ep.Name,
			url:          ep.URL,
			eventFilters: eventFilters,
			topicFilters: ep.TopicFilters,
			headers:      ep.Headers,
			timeout:      timeout,
			retryConfig:  retryConfig,
			limiter:      limiter,
		})
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker, len(endpoints))
	for _, ep := range endpoints {
		breakers[ep.name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        ep.name,
			MaxRequests: 1,
			Timeout:     cfg.Defaults.CircuitBreaker.ResetTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(cfg.Defaults.CircuitBreaker.FailureThreshold)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("webhook circuit breaker state changed",
					slog.String("endpoint", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &GenericNotifier{
		cfg:        cfg,
		source:     source,
		endpoints:  endpoints,
		eventQueue: make(chan eventJob, cfg.QueueSize),
		breakers:   breakers,
		sender:     sender,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		n.workers.Add(1)
		go n.worker()
	}

	logger.Info("webhook notifier started",
		slog.Int("workers", cfg.Workers),
		slog.Int("queue_size", cfg.QueueSize),
		slog.Int("endpoints", len(endpoints)))

	return n, nil
}

// Notify sends an event to all matching endpoints asynchronously.
func (n *GenericNotifier) Notify(ctx context.Context, event events.Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if n.closed.Load() {
		return ErrClosed
	}

	for _, endpoint := range n.endpoints {
		if !shouldNotify(endpoint, event) {
			continue
		}
		n.enqueue(eventJob{event: event, endpoint: endpoint})
	}

	return nil
}

func (n *GenericNotifier) enqueue(job eventJob) {
	n.pending.Add(1)

	select {
	case n.eventQueue <- job:
		return
	default:
	}

	if n.cfg.DropPolicy == "oldest" {
		select {
		case old := <-n.eventQueue:
			n.dropped(old)
		default:
		}
		select {
		case n.eventQueue <- job:
			return
		default:
		}
	}
	n.dropped(job)
}

func (n *GenericNotifier) dropped(job eventJob) {
	n.logger.Error("webhook queue full, event dropped",
		slog.String("event_type", job.event.Type()),
		slog.String("endpoint", job.endpoint.name))
	n.pending.Done()
}

// shouldNotify checks if an endpoint should be notified for this event.
// Topic filters only apply to events that carry a topic.
func shouldNotify(endpoint endpointConfig, event events.Event) bool {
	if len(endpoint.eventFilters) > 0 && !endpoint.eventFilters[event.Type()] {
		return false
	}

	if event.Topic() == "" || len(endpoint.topicFilters) == 0 {
		return true
	}
	for _, filter := range endpoint.topicFilters {
		if topics.TopicMatch(filter, event.Topic()) {
			return true
		}
	}
	return false
}

func (n *GenericNotifier) worker() {
	defer n.workers.Done()

	for {
		select {
		case <-n.ctx.Done():
			return
		case job := <-n.eventQueue:
			n.processJob(job)
		}
	}
}

// processJob sends a webhook through the endpoint breaker and schedules a
// retry on failure.
func (n *GenericNotifier) processJob(job eventJob) {
	if l := job.endpoint.limiter; l != nil {
		if err := l.Wait(n.ctx); err != nil {
			n.logger.Warn("webhook delivery abandoned while rate limited",
				slog.String("endpoint", job.endpoint.name),
				slog.String("event_type", job.event.Type()))
			n.pending.Done()
			return
		}
	}

	breaker := n.breakers[job.endpoint.name]

	_, err := breaker.Execute(func() (any, error) {
		return nil, n.sendWebhook(job)
	})
	if err == nil {
		n.pending.Done()
		return
	}

	if job.attempt >= job.endpoint.retryConfig.MaxAttempts-1 {
		n.logger.Error("webhook delivery failed after max retries",
			slog.String("endpoint", job.endpoint.name),
			slog.String("event_type", job.event.Type()),
			slog.Int("attempts", job.attempt+1),
			slog.String("error", err.Error()))
		n.pending.Done()
		return
	}

	job.attempt++
	delay := calculateRetryDelay(job.attempt, job.endpoint.retryConfig)

	n.logger.Debug("webhook delivery failed, retrying",
		slog.String("endpoint", job.endpoint.name),
		slog.String("event_type", job.event.Type()),
		slog.Int("attempt", job.attempt),
		slog.Duration("retry_after", delay),
		slog.String("error", err.Error()))

	time.AfterFunc(delay, func() {
		select {
		case n.eventQueue <- job:
		default:
			n.logger.Error("failed to requeue event for retry",
				slog.String("endpoint", job.endpoint.name),
				slog.String("event_type", job.event.Type()))
			n.pending.Done()
		}
	})
}

// sendWebhook marshals the event and delegates to the protocol-specific sender.
func (n *GenericNotifier) sendWebhook(job eventJob) error {
	payload, err := json.Marshal(job.event.Wrap(n.source))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(n.ctx, job.endpoint.timeout)
	defer cancel()

	if err := n.sender.Send(ctx, job.endpoint.url, job.endpoint.headers, payload, job.endpoint.timeout); err != nil {
		return err
	}

	n.logger.Debug("webhook delivered successfully",
		slog.String("endpoint", job.endpoint.name),
		slog.String("event_type", job.event.Type()))

	return nil
}

// calculateRetryDelay calculates exponential backoff delay.
func calculateRetryDelay(attempt int, cfg config.RetryConfig) time.Duration {
	delay := float64(cfg.InitialInterval) * math.Pow(cfg.Multiplier, float64(attempt))
	if cfg.MaxInterval > 0 && delay > float64(cfg.MaxInterval) {
		delay = float64(cfg.MaxInterval)
	}
	return time.Duration(delay)
}

// Close stops accepting events and waits up to the shutdown timeout for
// queued and retrying deliveries to finish.
func (n *GenericNotifier) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	n.logger.Info("shutting down webhook notifier")

	done := make(chan struct{})
	go func() {
		n.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.logger.Info("webhook notifier stopped gracefully")
	case <-time.After(n.cfg.ShutdownTimeout):
		n.logger.Warn("webhook notifier shutdown timeout, some events may be lost",
			slog.Int("queue_depth", len(n.eventQueue)))
	}

	n.cancel()
	n.workers.Wait()

	return nil
}
