// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package sparkplug

// Requirement identifiers exercised by the session termination test.
const (
	IDTopicsDDeathMQTT    = "topics-ddeath-mqtt"
	IDTopicsDDeathSeqNum  = "topics-ddeath-seq-num"
	IDPayloadsDDeathTime  = "payloads-ddeath-timestamp"
	IDPayloadsDDeathSeq   = "payloads-ddeath-seq"
	IDPayloadsDDeathInc   = "payloads-ddeath-seq-inc"
	IDPayloadsDDeathSeqNo = "payloads-ddeath-seq-number"

	IDEdgeNodeDisconnectNDeath = "operational-behavior-edge-node-intentional-disconnect-ndeath"
	IDEdgeNodeDisconnectPacket = "operational-behavior-edge-node-intentional-disconnect-packet"
	IDDeviceDDeath             = "operational-behavior-device-ddeath"
)

// Specification sections the requirements belong to.
const (
	SectionPayloadsDescDDeath         = "payloads_desc_ddeath"
	SectionPayloadsBDDeath            = "payloads_b_ddeath"
	SectionEdgeNodeSessionTermination = "operational_behavior_edge_node_session_termination"
	SectionDeviceSessionTermination   = "operational_behavior_device_session_termination"
)

// Requirement is a single normative statement of the Sparkplug specification.
type Requirement struct {
	ID      string
	Section string
	Text    string
}

var requirements = map[string]Requirement{
	IDTopicsDDeathMQTT: {
		ID:      IDTopicsDDeathMQTT,
		Section: SectionPayloadsDescDDeath,
		Text:    "DDEATH messages MUST be published with MQTT QoS equal to 0 and retain equal to false.",
	},
	IDTopicsDDeathSeqNum: {
		ID:      IDTopicsDDeathSeqNum,
		Section: SectionPayloadsDescDDeath,
		Text: "The DDEATH MUST include a sequence number in the payload and it MUST have a value of one greater " +
			"than the previous MQTT message from the Edge Node contained unless the previous MQTT message " +
			"contained a value of 255. In this case the sequence number MUST be 0.",
	},
	IDPayloadsDDeathTime: {
		ID:      IDPayloadsDDeathTime,
		Section: SectionPayloadsBDDeath,
		Text:    "DDEATH messages MUST include a payload timestamp that denotes the time at which the message was published.",
	},
	IDPayloadsDDeathSeq: {
		ID:      IDPayloadsDDeathSeq,
		Section: SectionPayloadsBDDeath,
		Text:    "Every DDEATH message MUST include a sequence number.",
	},
	IDPayloadsDDeathInc: {
		ID:      IDPayloadsDDeathInc,
		Section: SectionPayloadsBDDeath,
		Text: "A DDEATH message MUST include a sequence number value of one greater than the previous " +
			"Sparkplug message from the Edge Node unless the previous message contained a value of 255. " +
			"In this case the sequence number MUST be 0.",
	},
	IDPayloadsDDeathSeqNo: {
		ID:      IDPayloadsDDeathSeqNo,
		Section: SectionPayloadsBDDeath,
		Text:    "A sequence number MUST be included in the payload of every DDEATH message.",
	},
	IDEdgeNodeDisconnectNDeath: {
		ID:      IDEdgeNodeDisconnectNDeath,
		Section: SectionEdgeNodeSessionTermination,
		Text:    "When an Edge Node disconnects intentionally, it MUST publish an NDEATH before terminating the connection.",
	},
	IDEdgeNodeDisconnectPacket: {
		ID:      IDEdgeNodeDisconnectPacket,
		Section: SectionEdgeNodeSessionTermination,
		Text:    "Immediately following the NDEATH publish, a DISCONNECT packet MAY be sent to the MQTT Server.",
	},
	IDDeviceDDeath: {
		ID:      IDDeviceDDeath,
		Section: SectionDeviceSessionTermination,
		Text: "If a Sparkplug Edge Node loses connection with an attached Sparkplug Device, it MUST publish " +
			"a DDEATH message on behalf of the device.",
	},
}

// LookupRequirement returns the requirement with the given id.
func LookupRequirement(id string) (Requirement, bool) {
	r, ok := requirements[id]
	return r, ok
}
