// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package sparkplug

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformedPayload is returned when a payload is not a valid Sparkplug B
// protobuf message.
var ErrMalformedPayload = errors.New("malformed sparkplug payload")

// Payload field numbers (sparkplug_b.proto).
const (
	fieldTimestamp protowire.Number = 1
	fieldMetrics   protowire.Number = 2
	fieldSeq       protowire.Number = 3
	fieldUUID      protowire.Number = 4
	fieldBody      protowire.Number = 5
)

// Metric field numbers.
const (
	fieldMetricName      protowire.Number = 1
	fieldMetricAlias     protowire.Number = 2
	fieldMetricTimestamp protowire.Number = 3
	fieldMetricDatatype  protowire.Number = 4
	fieldMetricIsNull    protowire.Number = 7
	fieldMetricInt       protowire.Number = 10
	fieldMetricLong      protowire.Number = 11
	fieldMetricFloat     protowire.Number = 12
	fieldMetricDouble    protowire.Number = 13
	fieldMetricBoolean   protowire.Number = 14
	fieldMetricString    protowire.Number = 15
	fieldMetricBytes     protowire.Number = 16
)

// Payload is a decoded Sparkplug B payload. Optional fields are nil when the
// publisher left them out.
type Payload struct {
	Timestamp *uint64
	Seq       *uint64
	UUID      *string
	Body      []byte
	Metrics   []Metric
}

// Metric is a decoded Sparkplug B metric. Only scalar values are decoded;
// dataset, template and extension values are skipped.
type Metric struct {
	Name      *string
	Alias     *uint64
	Timestamp *uint64
	Datatype  *uint32
	IsNull    bool
	Value     any
}

// HasTimestamp reports whether the payload carries a timestamp.
func (p *Payload) HasTimestamp() bool {
	return p != nil && p.Timestamp != nil
}

// HasSeq reports whether the payload carries a sequence number.
func (p *Payload) HasSeq() bool {
	return p != nil && p.Seq != nil
}

// DecodePayload decodes a Sparkplug B payload. Unknown fields are skipped.
func DecodePayload(b []byte) (*Payload, error) {
	p := &Payload{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: timestamp: %v", ErrMalformedPayload, protowire.ParseError(n))
			}
			p.Timestamp = &v
			b = b[n:]
		case num == fieldSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: seq: %v", ErrMalformedPayload, protowire.ParseError(n))
			}
			p.Seq = &v
			b = b[n:]
		case num == fieldUUID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: uuid: %v", ErrMalformedPayload, protowire.ParseError(n))
			}
			p.UUID = &v
			b = b[n:]
		case num == fieldBody && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: body: %v", ErrMalformedPayload, protowire.ParseError(n))
			}
			p.Body = append([]byte(nil), v...)
			b = b[n:]
		case num == fieldMetrics && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: metric: %v", ErrMalformedPayload, protowire.ParseError(n))
			}
			m, err := decodeMetric(v)
			if err != nil {
				return nil, err
			}
			p.Metrics = append(p.Metrics, m)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedPayload, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return p, nil
}

func decodeMetric(b []byte) (Metric, error) {
	var m Metric
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return m, fmt.Errorf("%w: metric tag: %v", ErrMalformedPayload, protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return m, fmt.Errorf("%w: metric field %d: %v", ErrMalformedPayload, num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldMetricAlias:
				m.Alias = &v
			case fieldMetricTimestamp:
				m.Timestamp = &v
			case fieldMetricDatatype:
				dt := uint32(v)
				m.Datatype = &dt
			case fieldMetricIsNull:
				m.IsNull = protowire.DecodeBool(v)
			case fieldMetricInt:
				m.Value = uint32(v)
			case fieldMetricLong:
				m.Value = v
			case fieldMetricBoolean:
				m.Value = protowire.DecodeBool(v)
			}
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return m, fmt.Errorf("%w: metric field %d: %v", ErrMalformedPayload, num, protowire.ParseError(n))
			}
			b = b[n:]
			if num == fieldMetricFloat {
				m.Value = math.Float32frombits(v)
			}
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return m, fmt.Errorf("%w: metric field %d: %v", ErrMalformedPayload, num, protowire.ParseError(n))
			}
			b = b[n:]
			if num == fieldMetricDouble {
				m.Value = math.Float64frombits(v)
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return m, fmt.Errorf("%w: metric field %d: %v", ErrMalformedPayload, num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldMetricName:
				s := string(v)
				m.Name = &s
			case fieldMetricString:
				m.Value = string(v)
			case fieldMetricBytes:
				m.Value = append([]byte(nil), v...)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return m, fmt.Errorf("%w: metric field %d: %v", ErrMalformedPayload, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return m, nil
}

// EncodePayload encodes p in the Sparkplug B wire format. Metric values of
// unsupported Go types are left out.
func EncodePayload(p *Payload) []byte {
	var b []byte
	if p == nil {
		return b
	}
	if p.Timestamp != nil {
		b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, *p.Timestamp)
	}
	for _, m := range p.Metrics {
		b = protowire.AppendTag(b, fieldMetrics, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeMetric(m))
	}
	if p.Seq != nil {
		b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
		b = protowire.AppendVarint(b, *p.Seq)
	}
	if p.UUID != nil {
		b = protowire.AppendTag(b, fieldUUID, protowire.BytesType)
		b = protowire.AppendString(b, *p.UUID)
	}
	if p.Body != nil {
		b = protowire.AppendTag(b, fieldBody, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Body)
	}
	return b
}

func encodeMetric(m Metric) []byte {
	var b []byte
	if m.Name != nil {
		b = protowire.AppendTag(b, fieldMetricName, protowire.BytesType)
		b = protowire.AppendString(b, *m.Name)
	}
	if m.Alias != nil {
		b = protowire.AppendTag(b, fieldMetricAlias, protowire.VarintType)
		b = protowire.AppendVarint(b, *m.Alias)
	}
	if m.Timestamp != nil {
		b = protowire.AppendTag(b, fieldMetricTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, *m.Timestamp)
	}
	if m.Datatype != nil {
		b = protowire.AppendTag(b, fieldMetricDatatype, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*m.Datatype))
	}
	if m.IsNull {
		b = protowire.AppendTag(b, fieldMetricIsNull, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}

	switch v := m.Value.(type) {
	case uint32:
		b = protowire.AppendTag(b, fieldMetricInt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	case uint64:
		b = protowire.AppendTag(b, fieldMetricLong, protowire.VarintType)
		b = protowire.AppendVarint(b, v)
	case float32:
		b = protowire.AppendTag(b, fieldMetricFloat, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	case float64:
		b = protowire.AppendTag(b, fieldMetricDouble, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	case bool:
		b = protowire.AppendTag(b, fieldMetricBoolean, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(v))
	case string:
		b = protowire.AppendTag(b, fieldMetricString, protowire.BytesType)
		b = protowire.AppendString(b, v)
	case []byte:
		b = protowire.AppendTag(b, fieldMetricBytes, protowire.BytesType)
		b = protowire.AppendBytes(b, v)
	}
	return b
}
