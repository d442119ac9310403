// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package edge holds conformance tests run against Sparkplug edge nodes.
package edge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/sparkplug-tck/sparkplug"
	"github.com/absmach/sparkplug-tck/tck"
	"github.com/google/uuid"
)

// SessionTerminationName is the registry name of the session termination test.
const SessionTerminationName = "SessionTermination"

var sessionTerminationIDs = []string{
	sparkplug.IDTopicsDDeathMQTT,
	sparkplug.IDTopicsDDeathSeqNum,
	sparkplug.IDPayloadsDDeathTime,
	sparkplug.IDPayloadsDDeathSeq,
	sparkplug.IDPayloadsDDeathInc,
	sparkplug.IDPayloadsDDeathSeqNo,
	sparkplug.IDEdgeNodeDisconnectNDeath,
	sparkplug.IDEdgeNodeDisconnectPacket,
	sparkplug.IDDeviceDDeath,
}

var _ tck.Test = (*SessionTermination)(nil)

// Observations is the bookkeeping of a session termination test. None of it
// is part of the assertion results.
type Observations struct {
	NDeathFound           bool
	DDeathFound           bool
	EdgeClientID          string
	Disconnects           int
	DisconnectAfterNDeath bool
}

// SessionTermination checks the NDEATH and DDEATH messages an edge node
// publishes when its session ends.
type SessionTermination struct {
	id         sparkplug.Identity
	params     []string
	classifier sparkplug.Classifier
	decode     tck.PayloadDecoder
	logger     *slog.Logger
	reporter   tck.Reporter
	metrics    tck.Recorder
	startedAt  time.Time

	mu       sync.Mutex
	ledger   *tck.Ledger
	tracker  *tck.SequenceTracker
	checker  *tck.Checker
	evidence map[string]string
	obs      Observations
}

// NewSessionTermination creates the test from its parameters:
// hostApplicationId groupId edgeNodeId deviceId.
func NewSessionTermination(params []string, deps tck.Deps) (*SessionTermination, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Edge Node session termination test", slog.Any("parameters", params))

	if len(params) < 4 {
		logger.Error("parameters to edge session termination test must be: hostApplicationId groupId edgeNodeId deviceId")
		return nil, fmt.Errorf("%w: expected 4 parameters, got %d", tck.ErrInvalidParameters, len(params))
	}
	for i, p := range params[:4] {
		if p == "" {
			return nil, fmt.Errorf("%w: parameter %d is empty", tck.ErrInvalidParameters, i)
		}
	}

	id := sparkplug.Identity{
		HostApplicationID: params[0],
		GroupID:           params[1],
		EdgeNodeID:        params[2],
		DeviceID:          params[3],
	}
	decode := deps.Decoder
	if decode == nil {
		decode = sparkplug.DecodePayload
	}
	tracker := tck.NewSequenceTracker()

	logger.Info("Session termination test identity",
		slog.String("host_application_id", id.HostApplicationID),
		slog.String("group_id", id.GroupID),
		slog.String("edge_node_id", id.EdgeNodeID),
		slog.String("device_id", id.DeviceID))

	return &SessionTermination{
		id:         id,
		params:     append([]string(nil), params[:4]...),
		classifier: sparkplug.NewClassifier(deps.Namespace, id),
		decode:     decode,
		logger:     logger,
		reporter:   deps.Reporter,
		metrics:    deps.Recorder,
		startedAt:  time.Now(),
		ledger:     tck.NewLedger(sessionTerminationIDs...),
		tracker:    tracker,
		checker:    tck.NewChecker(tracker),
		evidence:   make(map[string]string),
	}, nil
}

// Factory adapts NewSessionTermination to tck.Factory.
func Factory(params []string, deps tck.Deps) (tck.Test, error) {
	return NewSessionTermination(params, deps)
}

// Register adds the edge tests to r.
func Register(r *tck.Registry) {
	r.Register(SessionTerminationName, Factory)
}

func (s *SessionTermination) Name() string {
	return SessionTerminationName
}

func (s *SessionTermination) IDs() []string {
	return append([]string(nil), sessionTerminationIDs...)
}

// Connect resets the sequence baselines when the edge node reconnects.
func (s *SessionTermination) Connect(clientID string, pkt tck.ConnectPacket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if clientID != "" && clientID == s.obs.EdgeClientID {
		s.tracker.Reset()
		s.logger.Debug("edge node reconnected, sequence baselines reset",
			slog.String("client_id", clientID),
			slog.Bool("clean_start", pkt.CleanStart))
	}
}

func (s *SessionTermination) Disconnect(clientID string, pkt tck.DisconnectPacket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.obs.Disconnects++
	if s.obs.NDeathFound && clientID == s.obs.EdgeClientID {
		s.obs.DisconnectAfterNDeath = true
	}
	s.logger.Debug("session termination test - disconnect",
		slog.String("client_id", clientID),
		slog.Bool("graceful", pkt.Graceful))
}

func (s *SessionTermination) Subscribe(clientID string, pkt tck.SubscribePacket) {
	s.logger.Debug("session termination test - subscribe",
		slog.String("client_id", clientID),
		slog.Int("filters", len(pkt.Filters)))
}

// Publish verifies NDEATH and DDEATH messages. Other topics are ignored.
func (s *SessionTermination) Publish(clientID string, pkt tck.PublishPacket) {
	desc := s.classifier.Classify(pkt.Topic)

	switch desc.Kind {
	case sparkplug.KindNodeDeath:
		s.mu.Lock()
		s.obs.NDeathFound = true
		s.obs.EdgeClientID = clientID
		s.mu.Unlock()

		s.record(desc.Kind)
		s.logger.Info("Edge session termination test - publish", slog.String("topic", pkt.Topic))
	case sparkplug.KindDeviceDeath:
		payload, err := s.decode(pkt.Payload)
		if err != nil {
			s.logger.Debug("failed to decode DDEATH payload",
				slog.String("topic", pkt.Topic),
				slog.String("error", err.Error()))
			payload = nil
		}
		s.record(desc.Kind)
		s.checkDeviceDeath(clientID, pkt, payload)
	}
}

func (s *SessionTermination) checkDeviceDeath(clientID string, pkt tck.PublishPacket, payload *sparkplug.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.obs.DDeathFound = true
	s.obs.EdgeClientID = clientID

	inv := s.checker.Evaluate(tck.DeviceOrigin(s.id.DeviceID), payload)

	s.set(sparkplug.IDTopicsDDeathMQTT, pkt.QoS == tck.AtMostOnce && !pkt.Retain, pkt.Topic)
	s.set(sparkplug.IDTopicsDDeathSeqNum, inv.SeqValid, pkt.Topic)
	s.set(sparkplug.IDPayloadsDDeathInc, inv.SeqValid, pkt.Topic)
	s.set(sparkplug.IDPayloadsDDeathTime, inv.HasTimestamp, pkt.Topic)
	s.set(sparkplug.IDPayloadsDDeathSeq, inv.HasSeq, pkt.Topic)
	s.set(sparkplug.IDPayloadsDDeathSeqNo, inv.HasSeq, pkt.Topic)
}

// set must be called with s.mu held.
func (s *SessionTermination) set(id string, passed bool, topic string) {
	if !s.ledger.Set(id, passed) {
		return
	}
	s.evidence[id] = topic
	if !passed {
		s.logger.Warn("assertion failed",
			slog.String("test", SessionTerminationName),
			slog.String("id", id),
			slog.String("topic", topic))
	}
	if s.metrics != nil {
		s.metrics.RecordAssertion(SessionTerminationName, id, tck.VerdictOf(passed))
	}
}

func (s *SessionTermination) record(kind sparkplug.Kind) {
	if s.metrics != nil {
		s.metrics.RecordMessage(SessionTerminationName, kind.String())
	}
}

// Observations returns a copy of the test's bookkeeping.
func (s *SessionTermination) Observations() Observations {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.obs
}

// Results returns the current verdict of every assertion.
func (s *SessionTermination) Results() tck.Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Snapshot()
}

// End merges the verdicts into results, unexercised assertions included as
// tck.Unset, and hands a report to the reporter. The ledger and flags are
// kept; a new test must be created for the next run.
func (s *SessionTermination) End(results tck.Results) {
	s.mu.Lock()
	snapshot := s.ledger.Snapshot()
	evidence := make(map[string]string, len(s.evidence))
	for id, topic := range s.evidence {
		evidence[id] = topic
	}
	s.obs.EdgeClientID = ""
	s.mu.Unlock()

	if results != nil {
		for id, v := range snapshot {
			results[id] = v
		}
	}

	report := &tck.Report{
		ID:         uuid.New().String(),
		Test:       SessionTerminationName,
		Parameters: append([]string(nil), s.params...),
		StartedAt:  s.startedAt,
		EndedAt:    time.Now(),
		Results:    snapshot,
		Evidence:   evidence,
	}

	if s.metrics != nil {
		s.metrics.RecordTestCompleted(SessionTerminationName, report.Passed())
	}

	passed, failed, unset := snapshot.Count()
	s.logger.Info("Edge session termination test finished",
		slog.String("report_id", report.ID),
		slog.Int("passed", passed),
		slog.Int("failed", failed),
		slog.Int("not_executed", unset))

	if s.reporter == nil {
		return
	}
	if err := s.reporter.Report(context.Background(), report); err != nil {
		s.logger.Error("failed to report test results",
			slog.String("report_id", report.ID),
			slog.String("error", err.Error()))
	}
}
