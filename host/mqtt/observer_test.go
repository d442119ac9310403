// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mqtt

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/absmach/sparkplug-tck/sparkplug"
	"github.com/absmach/sparkplug-tck/tck"
	"github.com/absmach/sparkplug-tck/tck/edge"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeClient struct {
	mu           sync.Mutex
	opts         *paho.ClientOptions
	connectTok   paho.Token
	subscribeTok paho.Token
	filters      map[string]byte
	handler      paho.MessageHandler
	disconnected bool
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() paho.Token {
	if c.connectTok != nil {
		return c.connectTok
	}
	return doneToken(nil)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

func (c *fakeClient) Publish(string, byte, bool, interface{}) paho.Token {
	return doneToken(nil)
}

func (c *fakeClient) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	return c.SubscribeMultiple(map[string]byte{topic: qos}, cb)
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, cb paho.MessageHandler) paho.Token {
	c.mu.Lock()
	c.filters = filters
	c.handler = cb
	c.mu.Unlock()
	if c.subscribeTok != nil {
		return c.subscribeTok
	}
	return doneToken(nil)
}

func (c *fakeClient) Unsubscribe(...string) paho.Token        { return doneToken(nil) }
func (c *fakeClient) AddRoute(string, paho.MessageHandler)    {}
func (c *fakeClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

func (c *fakeClient) deliver(msg paho.Message) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(c, msg)
}

type fakeMessage struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return m.qos }
func (m fakeMessage) Retained() bool    { return m.retain }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type call struct {
	kind     string
	clientID string
	topic    string
	qos      tck.QoS
	retain   bool
}

type fakeTest struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeTest) add(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeTest) Name() string  { return "fake" }
func (f *fakeTest) IDs() []string { return nil }
func (f *fakeTest) Connect(clientID string, pkt tck.ConnectPacket) {
	f.add(call{kind: "connect", clientID: clientID})
}

func (f *fakeTest) Disconnect(clientID string, pkt tck.DisconnectPacket) {
	f.add(call{kind: "disconnect", clientID: clientID})
}

func (f *fakeTest) Subscribe(clientID string, pkt tck.SubscribePacket) {
	f.add(call{kind: "subscribe", clientID: clientID, topic: pkt.Filters[0].Filter, qos: pkt.Filters[0].QoS})
}

func (f *fakeTest) Publish(clientID string, pkt tck.PublishPacket) {
	f.add(call{kind: "publish", clientID: clientID, topic: pkt.Topic, qos: pkt.QoS, retain: pkt.Retain})
}
func (f *fakeTest) End(tck.Results) {}

type countingRecorder struct {
	mu    sync.Mutex
	types []string
	bytes int64
}

func (r *countingRecorder) RecordObserved(messageType string, sizeBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, messageType)
	r.bytes += sizeBytes
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() Config {
	return Config{
		BrokerURL:      "tcp://localhost:1883",
		ClientID:       "observer",
		Topics:         []string{"spBv1.0/#"},
		QoS:            2,
		ConnectTimeout: time.Second,
		CleanSession:   true,
	}
}

func startObserver(t *testing.T, test tck.Test, opts ...Option) (*Observer, *fakeClient) {
	t.Helper()

	client := &fakeClient{}
	opts = append(opts, WithClientFactory(func(o *paho.ClientOptions) paho.Client {
		client.opts = o
		return client
	}))
	o := New(testConfig(), test, testLogger(), opts...)
	require.NoError(t, o.Start(context.Background()))
	return o, client
}

func TestObserver_StartSubscribes(t *testing.T) {
	test := &fakeTest{}
	o, client := startObserver(t, test)

	assert.Equal(t, map[string]byte{"spBv1.0/#": 2}, client.filters)
	require.Len(t, test.calls, 1)
	assert.Equal(t, call{kind: "subscribe", clientID: "observer", topic: "spBv1.0/#", qos: tck.ExactlyOnce}, test.calls[0])

	assert.Equal(t, "observer", client.opts.ClientID)
	assert.True(t, client.opts.CleanSession)
	assert.Equal(t, uint(4), client.opts.ProtocolVersion)

	assert.True(t, o.Connected())
	require.NoError(t, o.Stop())
	assert.True(t, client.disconnected)
	assert.False(t, o.Connected())
	assert.ErrorIs(t, o.Stop(), ErrNotStarted)
}

func TestObserver_StartErrors(t *testing.T) {
	cases := []struct {
		name   string
		client *fakeClient
	}{
		{"connect refused", &fakeClient{connectTok: doneToken(errors.New("refused"))}},
		{"connect timeout", &fakeClient{connectTok: pendingToken()}},
		{"subscribe rejected", &fakeClient{subscribeTok: doneToken(errors.New("not authorized"))}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := New(testConfig(), &fakeTest{}, testLogger(), WithClientFactory(func(*paho.ClientOptions) paho.Client {
				return tc.client
			}))
			assert.Error(t, o.Start(context.Background()))
		})
	}
}

func TestObserver_StartCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(testConfig(), &fakeTest{}, testLogger(), WithClientFactory(func(*paho.ClientOptions) paho.Client {
		return &fakeClient{connectTok: pendingToken()}
	}))
	assert.ErrorIs(t, o.Start(ctx), context.Canceled)
}

func TestObserver_ForwardsDeliveries(t *testing.T) {
	test := &fakeTest{}
	rec := &countingRecorder{}
	o, client := startObserver(t, test, WithRecorder(rec))
	defer o.Stop()

	client.deliver(fakeMessage{topic: "spBv1.0/G1/NBIRTH/E1", qos: 0, payload: []byte{1, 2}})
	client.deliver(fakeMessage{topic: "spBv1.0/G1/DDEATH/E1/D1", qos: 1, retain: true, payload: []byte{3}})
	client.deliver(fakeMessage{topic: "other/topic", qos: 0})

	assert.Equal(t, []call{
		{kind: "subscribe", clientID: "observer", topic: "spBv1.0/#", qos: tck.ExactlyOnce},
		{kind: "connect", clientID: "G1/E1"},
		{kind: "publish", clientID: "G1/E1", topic: "spBv1.0/G1/NBIRTH/E1", qos: tck.AtMostOnce},
		{kind: "publish", clientID: "G1/E1", topic: "spBv1.0/G1/DDEATH/E1/D1", qos: tck.AtLeastOnce, retain: true},
		{kind: "publish", clientID: "", topic: "other/topic", qos: tck.AtMostOnce},
	}, test.calls)

	assert.Equal(t, int64(3), o.Delivered())
	assert.Equal(t, []string{sparkplug.TypeNBirth, sparkplug.TypeDDeath, "unknown"}, rec.types)
	assert.Equal(t, int64(3), rec.bytes)
}

func TestObserver_SessionTermination(t *testing.T) {
	test, err := edge.NewSessionTermination([]string{"H", "G1", "E1", "D1"}, tck.Deps{Logger: testLogger()})
	require.NoError(t, err)

	o, client := startObserver(t, test)
	defer o.Stop()

	ts, seq := uint64(1700000000000), uint64(7)
	ddeath := sparkplug.EncodePayload(&sparkplug.Payload{Timestamp: &ts, Seq: &seq})

	client.deliver(fakeMessage{topic: "spBv1.0/G1/DDEATH/E1/D1", qos: 0, payload: ddeath})
	client.deliver(fakeMessage{topic: "spBv1.0/G1/NDEATH/E1", qos: 1})

	obs := test.Observations()
	assert.True(t, obs.DDeathFound)
	assert.True(t, obs.NDeathFound)
	assert.Equal(t, "G1/E1", obs.EdgeClientID)

	results := test.Results()
	assert.Equal(t, tck.Pass, results[sparkplug.IDTopicsDDeathMQTT])
	assert.Equal(t, tck.Pass, results[sparkplug.IDPayloadsDDeathSeqNo])

	// A new birth of the same node resets sequence continuity.
	client.deliver(fakeMessage{topic: "spBv1.0/G1/NBIRTH/E1", qos: 0})
	seq = 0
	ddeath = sparkplug.EncodePayload(&sparkplug.Payload{Timestamp: &ts, Seq: &seq})
	client.deliver(fakeMessage{topic: "spBv1.0/G1/DDEATH/E1/D1", qos: 0, payload: ddeath})

	assert.Equal(t, tck.Pass, test.Results()[sparkplug.IDPayloadsDDeathInc])
}
