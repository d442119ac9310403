// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tck

import (
	"context"
	"errors"
	"time"

	"github.com/absmach/sparkplug-tck/sparkplug"
)

// Common errors.
var (
	ErrInvalidParameters = errors.New("invalid test parameters")
	ErrUnknownTest       = errors.New("unknown test")
)

// QoS is the MQTT quality of service of a publish.
type QoS byte

const (
	AtMostOnce QoS = iota
	AtLeastOnce
	ExactlyOnce
)

func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "at_most_once"
	case AtLeastOnce:
		return "at_least_once"
	case ExactlyOnce:
		return "exactly_once"
	default:
		return "invalid"
	}
}

// Will is the last will announced in a CONNECT packet.
type Will struct {
	Topic   string
	Payload []byte
	QoS     QoS
	Retain  bool
}

// ConnectPacket describes a client connection.
type ConnectPacket struct {
	ClientID   string
	CleanStart bool
	KeepAlive  uint16
	Will       *Will
}

// DisconnectPacket describes the end of a client connection. Graceful is
// false when the connection dropped without a DISCONNECT packet.
type DisconnectPacket struct {
	ReasonCode byte
	Graceful   bool
}

// Subscription is one topic filter of a SUBSCRIBE packet.
type Subscription struct {
	Filter string
	QoS    QoS
}

// SubscribePacket describes a client subscription request.
type SubscribePacket struct {
	Filters []Subscription
}

// PublishPacket is an inbound PUBLISH.
type PublishPacket struct {
	Topic   string
	QoS     QoS
	Retain  bool
	Payload []byte
}

// PayloadDecoder turns a raw payload into a Sparkplug record.
type PayloadDecoder func([]byte) (*sparkplug.Payload, error)

// Test is a conformance test driven by MQTT lifecycle callbacks.
// Callbacks must not block and may be invoked concurrently.
type Test interface {
	// Name returns the test name.
	Name() string

	// IDs returns the assertion ids the test evaluates.
	IDs() []string

	Connect(clientID string, pkt ConnectPacket)
	Disconnect(clientID string, pkt DisconnectPacket)
	Subscribe(clientID string, pkt SubscribePacket)
	Publish(clientID string, pkt PublishPacket)

	// End merges the test's verdicts into results and reports them.
	End(results Results)
}

// Report is the outcome of one test run.
type Report struct {
	ID         string            `json:"id"`
	Test       string            `json:"test"`
	Parameters []string          `json:"parameters,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	EndedAt    time.Time         `json:"ended_at"`
	Results    Results           `json:"results"`
	Evidence   map[string]string `json:"evidence,omitempty"` // assertion id -> topic
}

// Passed reports whether no assertion failed.
func (r *Report) Passed() bool {
	_, failed, _ := r.Results.Count()
	return failed == 0
}

// Reporter receives reports of finished tests.
type Reporter interface {
	Report(ctx context.Context, r *Report) error
}

// Recorder receives measurements from running tests.
type Recorder interface {
	RecordMessage(test, kind string)
	RecordAssertion(test, id string, v Verdict)
	RecordTestCompleted(test string, passed bool)
}
