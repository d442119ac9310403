// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package topics

import "strings"

// TopicMatch checks if the topic matches the given filter according to MQTT wildcard rules.
// A shared subscription filter matches on its topic filter part.
// Topics starting with '$' are only matched by filters whose first level is literal.
func TopicMatch(filter, topic string) bool {
	if _, f, ok := ParseShared(filter); ok {
		filter = f
	}
	if filter == "" || topic == "" {
		return false
	}
	if filter == topic {
		return true
	}

	filterLevels := strings.Split(filter, "/")
	topicLevels := strings.Split(topic, "/")

	if strings.HasPrefix(topic, "$") && (filterLevels[0] == "+" || filterLevels[0] == "#") {
		return false
	}

	for i, fLevel := range filterLevels {
		// '#' matches the parent level and all children.
		if fLevel == "#" {
			return true
		}
		if i >= len(topicLevels) {
			return false
		}
		if fLevel != "+" && fLevel != topicLevels[i] {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}
