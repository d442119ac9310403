// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package badger

import (
	"encoding/json"
	"fmt"

	"github.com/absmach/sparkplug-tck/tck"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Compression selects how report values are compressed on disk.
type Compression byte

// Stored values start with the compression byte, followed by the JSON
// encoded report in that compression.
const (
	CompressionNone Compression = iota
	CompressionS2
	CompressionZstd
)

// ParseCompression maps a config name to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "s2":
		return CompressionS2, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q", name)
	}
}

// Zstd encoder/decoder shared by all stores.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		panic("failed to create zstd encoder: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
	)
	if err != nil {
		panic("failed to create zstd decoder: " + err.Error())
	}
}

func encodeReport(r *tck.Report, c Compression) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	var body []byte
	switch c {
	case CompressionS2:
		body = s2.Encode(nil, data)
	case CompressionZstd:
		body = zstdEncoder.EncodeAll(data, nil)
	default:
		c = CompressionNone
		body = data
	}

	return append([]byte{byte(c)}, body...), nil
}

func decodeReport(val []byte) (*tck.Report, error) {
	if len(val) == 0 {
		return nil, fmt.Errorf("empty report value")
	}

	var (
		data []byte
		err  error
	)
	switch Compression(val[0]) {
	case CompressionNone:
		data = val[1:]
	case CompressionS2:
		data, err = s2.Decode(nil, val[1:])
	case CompressionZstd:
		data, err = zstdDecoder.DecodeAll(val[1:], nil)
	default:
		return nil, fmt.Errorf("unknown report compression %d", val[0])
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decompress report: %w", err)
	}

	var r tck.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &r, nil
}
