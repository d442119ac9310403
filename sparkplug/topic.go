// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package sparkplug

import "strings"

// Namespace is the topic namespace of Sparkplug B (spBv1.0).
const Namespace = "spBv1.0"

// Message type tokens.
const (
	TypeNBirth = "NBIRTH"
	TypeNDeath = "NDEATH"
	TypeNData  = "NDATA"
	TypeNCmd   = "NCMD"
	TypeDBirth = "DBIRTH"
	TypeDDeath = "DDEATH"
	TypeDData  = "DDATA"
	TypeDCmd   = "DCMD"
)

// Kind classifies a topic against the death certificate shapes.
type Kind uint8

const (
	KindUnrecognized Kind = iota
	KindNodeDeath
	KindDeviceDeath
)

func (k Kind) String() string {
	switch k {
	case KindNodeDeath:
		return "node_death"
	case KindDeviceDeath:
		return "device_death"
	default:
		return "unrecognized"
	}
}

// Identity identifies the participants of one test session.
type Identity struct {
	HostApplicationID string
	GroupID           string
	EdgeNodeID        string
	DeviceID          string
}

// TopicDescriptor is the structured form of a topic.
type TopicDescriptor struct {
	Segments    []string
	Kind        Kind
	Namespace   string
	GroupID     string
	MessageType string
	EdgeNodeID  string
	DeviceID    string
}

// ParseTopic splits a topic into its Sparkplug fields without matching it
// against any identity. The returned Kind is always KindUnrecognized.
// Topics with fewer than four levels only carry their segments.
func ParseTopic(topic string) TopicDescriptor {
	d := TopicDescriptor{}
	if topic == "" {
		return d
	}
	d.Segments = strings.Split(topic, "/")
	if len(d.Segments) < 4 {
		return d
	}
	d.Namespace = d.Segments[0]
	d.GroupID = d.Segments[1]
	d.MessageType = d.Segments[2]
	d.EdgeNodeID = d.Segments[3]
	if len(d.Segments) == 5 {
		d.DeviceID = d.Segments[4]
	}
	return d
}

// Classifier matches topics against the NDEATH and DDEATH topics of a
// single edge node and device.
type Classifier struct {
	namespace string
	id        Identity
}

// NewClassifier returns a classifier for the given namespace and identity.
// An empty namespace selects Namespace.
func NewClassifier(namespace string, id Identity) Classifier {
	if namespace == "" {
		namespace = Namespace
	}
	return Classifier{namespace: namespace, id: id}
}

// Classify returns the descriptor of topic. Matching is exact on every level:
//
//	{namespace}/{group_id}/NDEATH/{edge_node_id}
//	{namespace}/{group_id}/DDEATH/{edge_node_id}/{device_id}
//
// Anything else, including empty or malformed topics, is KindUnrecognized.
func (c Classifier) Classify(topic string) TopicDescriptor {
	d := ParseTopic(topic)
	if len(d.Segments) < 4 {
		return d
	}
	if d.Namespace != c.namespace || d.GroupID != c.id.GroupID || d.EdgeNodeID != c.id.EdgeNodeID {
		return d
	}

	switch {
	case len(d.Segments) == 4 && d.MessageType == TypeNDeath:
		d.Kind = KindNodeDeath
	case len(d.Segments) == 5 && d.MessageType == TypeDDeath && d.DeviceID == c.id.DeviceID:
		d.Kind = KindDeviceDeath
	}
	return d
}

// NodeDeathTopic returns the NDEATH topic of the classifier's edge node.
func (c Classifier) NodeDeathTopic() string {
	return strings.Join([]string{c.namespace, c.id.GroupID, TypeNDeath, c.id.EdgeNodeID}, "/")
}

// DeviceDeathTopic returns the DDEATH topic of the classifier's device.
func (c Classifier) DeviceDeathTopic() string {
	return strings.Join([]string{c.namespace, c.id.GroupID, TypeDDeath, c.id.EdgeNodeID, c.id.DeviceID}, "/")
}
