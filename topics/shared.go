// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package topics

import "strings"

const sharePrefix = "$share/"

// ParseShared parses a shared subscription filter.
// Format: $share/{ShareName}/{TopicFilter}
// Returns: shareName, topicFilter, isShared
//
// Examples:
//   - "$share/tck/spBv1.0/#" -> ("tck", "spBv1.0/#", true)
//   - "spBv1.0/#" -> ("", "spBv1.0/#", false)
func ParseShared(filter string) (shareName, topicFilter string, isShared bool) {
	if !strings.HasPrefix(filter, sharePrefix) {
		return "", filter, false
	}

	parts := strings.SplitN(filter[len(sharePrefix):], "/", 2)
	if len(parts) != 2 {
		return "", filter, false
	}

	return parts[0], parts[1], true
}

// IsShared returns true if the filter is a shared subscription.
func IsShared(filter string) bool {
	return strings.HasPrefix(filter, sharePrefix)
}
