// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package topics

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Common validation errors.
var (
	ErrInvalidTopicName   = errors.New("invalid topic name: contains wildcards or illegal characters")
	ErrInvalidTopicFilter = errors.New("invalid topic filter: misplaced wildcard or illegal characters")
)

// ValidateTopicName checks if the topic name is valid for PUBLISH (no wildcards).
func ValidateTopicName(topic string) error {
	if topic == "" {
		return ErrInvalidTopicName
	}
	if strings.ContainsAny(topic, "+#") {
		return ErrInvalidTopicName
	}
	if !utf8.ValidString(topic) || strings.ContainsRune(topic, 0) {
		return ErrInvalidTopicName
	}
	return nil
}

// ValidateTopicFilter checks if the filter is valid for SUBSCRIBE.
// Shared subscription filters are validated on their topic filter part.
func ValidateTopicFilter(filter string) error {
	if IsShared(filter) {
		share, f, ok := ParseShared(filter)
		if !ok || share == "" || strings.ContainsAny(share, "+#") {
			return ErrInvalidTopicFilter
		}
		filter = f
	}
	if filter == "" {
		return ErrInvalidTopicFilter
	}
	if !utf8.ValidString(filter) || strings.ContainsRune(filter, 0) {
		return ErrInvalidTopicFilter
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "#":
			// Multi-level wildcard must be the last level.
			if i != len(levels)-1 {
				return ErrInvalidTopicFilter
			}
		case level == "+":
		case strings.ContainsAny(level, "+#"):
			return ErrInvalidTopicFilter
		}
	}
	return nil
}
