// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package sparkplug_test

import (
	"testing"

	"github.com/absmach/sparkplug-tck/sparkplug"
	"github.com/stretchr/testify/assert"
)

var testIdentity = sparkplug.Identity{
	HostApplicationID: "H",
	GroupID:           "G",
	EdgeNodeID:        "N",
	DeviceID:          "D",
}

func TestClassify(t *testing.T) {
	c := sparkplug.NewClassifier("", testIdentity)

	tests := []struct {
		topic string
		want  sparkplug.Kind
	}{
		{"spBv1.0/G/NDEATH/N", sparkplug.KindNodeDeath},
		{"spBv1.0/G/DDEATH/N/D", sparkplug.KindDeviceDeath},
		{"spBv1.0/G/NDEATH/N/D", sparkplug.KindUnrecognized},
		{"spBv1.0/G/DDEATH/N", sparkplug.KindUnrecognized},
		{"spBv1.0/G/DDEATH/N/D/extra", sparkplug.KindUnrecognized},
		{"spBv1.0/G/NBIRTH/N", sparkplug.KindUnrecognized},
		{"spBv1.0/G/DDATA/N/D", sparkplug.KindUnrecognized},
		{"spBv1.0/G/ddeath/N/D", sparkplug.KindUnrecognized},
		{"spBv1.0/G/DDEATH/N/d", sparkplug.KindUnrecognized},
		{"spBv1.0/G/DDEATH/N/D2", sparkplug.KindUnrecognized},
		{"spBv1.0/G/DDEATH/M/D", sparkplug.KindUnrecognized},
		{"spBv1.0/H/DDEATH/N/D", sparkplug.KindUnrecognized},
		{"spAv1.0/G/DDEATH/N/D", sparkplug.KindUnrecognized},
		{"spBv1.0/G/NDEATH/N/", sparkplug.KindUnrecognized},
		{"/spBv1.0/G/NDEATH/N", sparkplug.KindUnrecognized},
		{"", sparkplug.KindUnrecognized},
		{"/", sparkplug.KindUnrecognized},
		{"////", sparkplug.KindUnrecognized},
		{"spBv1.0", sparkplug.KindUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.topic).Kind)
		})
	}
}

func TestClassifySingleCharacterDeviation(t *testing.T) {
	c := sparkplug.NewClassifier("", testIdentity)
	topic := "spBv1.0/G/DDEATH/N/D"
	assert.Equal(t, sparkplug.KindDeviceDeath, c.Classify(topic).Kind)

	for i := range topic {
		if topic[i] == '/' {
			continue
		}
		mutated := []byte(topic)
		mutated[i] = 'x'
		if string(mutated) == topic {
			mutated[i] = 'y'
		}
		assert.Equal(t, sparkplug.KindUnrecognized, c.Classify(string(mutated)).Kind, "topic %q", mutated)
	}
}

func TestClassifyCustomNamespace(t *testing.T) {
	c := sparkplug.NewClassifier("sp", testIdentity)

	d := c.Classify("sp/G/DDEATH/N/D")
	assert.Equal(t, sparkplug.KindDeviceDeath, d.Kind)
	assert.Equal(t, "sp", d.Namespace)
	assert.Equal(t, "G", d.GroupID)
	assert.Equal(t, sparkplug.TypeDDeath, d.MessageType)
	assert.Equal(t, "N", d.EdgeNodeID)
	assert.Equal(t, "D", d.DeviceID)
	assert.Equal(t, []string{"sp", "G", "DDEATH", "N", "D"}, d.Segments)

	assert.Equal(t, sparkplug.KindUnrecognized, c.Classify("spBv1.0/G/DDEATH/N/D").Kind)
}

func TestDeathTopics(t *testing.T) {
	c := sparkplug.NewClassifier("", testIdentity)

	assert.Equal(t, "spBv1.0/G/NDEATH/N", c.NodeDeathTopic())
	assert.Equal(t, "spBv1.0/G/DDEATH/N/D", c.DeviceDeathTopic())
	assert.Equal(t, sparkplug.KindNodeDeath, c.Classify(c.NodeDeathTopic()).Kind)
	assert.Equal(t, sparkplug.KindDeviceDeath, c.Classify(c.DeviceDeathTopic()).Kind)
}

func TestParseTopic(t *testing.T) {
	d := sparkplug.ParseTopic("spBv1.0/plant/DDATA/edge-1/pump")
	assert.Equal(t, sparkplug.KindUnrecognized, d.Kind)
	assert.Equal(t, "plant", d.GroupID)
	assert.Equal(t, sparkplug.TypeDData, d.MessageType)
	assert.Equal(t, "edge-1", d.EdgeNodeID)
	assert.Equal(t, "pump", d.DeviceID)

	short := sparkplug.ParseTopic("a/b")
	assert.Equal(t, []string{"a", "b"}, short.Segments)
	assert.Empty(t, short.Namespace)

	assert.Nil(t, sparkplug.ParseTopic("").Segments)
}
