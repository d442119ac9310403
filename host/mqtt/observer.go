// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package mqtt feeds a tck.Test from a live MQTT broker.
//
// A subscriber only sees PUBLISH traffic, so the observer derives session
// events from it: every message is attributed to the edge node in its topic,
// and an NBIRTH is reported as a Connect of that node.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/absmach/sparkplug-tck/sparkplug"
	"github.com/absmach/sparkplug-tck/tck"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotStarted is returned when stopping an observer that never connected.
var ErrNotStarted = errors.New("observer not started")

// Recorder receives a measurement for every delivered message.
type Recorder interface {
	RecordObserved(messageType string, sizeBytes int64)
}

// Config holds the broker connection of an Observer.
type Config struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	Topics         []string
	QoS            byte
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	CleanSession   bool
}

// Observer subscribes to Sparkplug topics and forwards deliveries to a test.
type Observer struct {
	cfg      Config
	test     tck.Test
	logger   *slog.Logger
	recorder Recorder

	newClient  func(*paho.ClientOptions) paho.Client
	mu         sync.Mutex
	client     paho.Client
	subscribed atomic.Bool
	delivered  atomic.Int64
}

// Option configures an Observer.
type Option func(*Observer)

// WithRecorder sets the recorder notified of every delivered message.
func WithRecorder(r Recorder) Option {
	return func(o *Observer) { o.recorder = r }
}

// WithClientFactory replaces the paho client constructor.
func WithClientFactory(fn func(*paho.ClientOptions) paho.Client) Option {
	return func(o *Observer) { o.newClient = fn }
}

// New creates an observer for the given test.
func New(cfg Config, test tck.Test, logger *slog.Logger, opts ...Option) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	o := &Observer{
		cfg:       cfg,
		test:      test,
		logger:    logger,
		newClient: paho.NewClient,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start connects to the broker and subscribes to the configured filters.
func (o *Observer) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(o.cfg.BrokerURL).
		SetClientID(o.cfg.ClientID).
		SetCleanSession(o.cfg.CleanSession).
		SetProtocolVersion(4).
		SetKeepAlive(o.cfg.KeepAlive).
		SetConnectTimeout(o.cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			o.logger.Warn("observer connection lost", slog.String("error", err.Error()))
		}).
		SetOnConnectHandler(func(c paho.Client) {
			// Resubscribe after an automatic reconnect.
			if !o.subscribed.Load() {
				return
			}
			if err := o.subscribe(c); err != nil {
				o.logger.Error("observer resubscribe failed", slog.String("error", err.Error()))
			}
		})
	if o.cfg.Username != "" {
		opts.SetUsername(o.cfg.Username)
		opts.SetPassword(o.cfg.Password)
	}

	client := o.newClient(opts)
	if err := wait(ctx, client.Connect(), o.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", o.cfg.BrokerURL, err)
	}

	if err := o.subscribe(client); err != nil {
		client.Disconnect(250)
		return err
	}
	o.subscribed.Store(true)

	o.mu.Lock()
	o.client = client
	o.mu.Unlock()

	o.logger.Info("observer started",
		slog.String("broker", o.cfg.BrokerURL),
		slog.Any("topics", o.cfg.Topics))

	return nil
}

func (o *Observer) subscribe(c paho.Client) error {
	filters := make(map[string]byte, len(o.cfg.Topics))
	subs := make([]tck.Subscription, 0, len(o.cfg.Topics))
	for _, t := range o.cfg.Topics {
		filters[t] = o.cfg.QoS
		subs = append(subs, tck.Subscription{Filter: t, QoS: tck.QoS(o.cfg.QoS)})
	}

	if err := wait(context.Background(), c.SubscribeMultiple(filters, o.handle), o.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	o.test.Subscribe(o.cfg.ClientID, tck.SubscribePacket{Filters: subs})
	return nil
}

// Stop disconnects from the broker.
func (o *Observer) Stop() error {
	o.mu.Lock()
	client := o.client
	o.client = nil
	o.mu.Unlock()

	if client == nil {
		return ErrNotStarted
	}
	o.subscribed.Store(false)
	client.Disconnect(250)

	o.logger.Info("observer stopped", slog.Int64("delivered", o.delivered.Load()))
	return nil
}

// Connected reports whether the observer holds an open broker connection.
func (o *Observer) Connected() bool {
	o.mu.Lock()
	client := o.client
	o.mu.Unlock()

	return client != nil && client.IsConnectionOpen()
}

// Delivered returns the number of messages forwarded to the test.
func (o *Observer) Delivered() int64 {
	return o.delivered.Load()
}

func (o *Observer) handle(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	desc := sparkplug.ParseTopic(topic)
	origin := edgeClientID(desc)

	if o.recorder != nil {
		messageType := desc.MessageType
		if messageType == "" {
			messageType = "unknown"
		}
		o.recorder.RecordObserved(messageType, int64(len(msg.Payload())))
	}

	if desc.MessageType == sparkplug.TypeNBirth && origin != "" {
		o.test.Connect(origin, tck.ConnectPacket{ClientID: origin, CleanStart: true})
	}

	o.test.Publish(origin, tck.PublishPacket{
		Topic:   topic,
		QoS:     tck.QoS(msg.Qos()),
		Retain:  msg.Retained(),
		Payload: msg.Payload(),
	})
	o.delivered.Add(1)
}

// edgeClientID names the edge node a topic belongs to.
func edgeClientID(desc sparkplug.TopicDescriptor) string {
	if desc.GroupID == "" || desc.EdgeNodeID == "" {
		return ""
	}
	return desc.GroupID + "/" + desc.EdgeNodeID
}

func wait(ctx context.Context, tok paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-tok.Done():
		return tok.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
