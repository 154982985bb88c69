// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package conn

import "grimm.is/sockwatch/internal/errors"

// groupingOrder is the cycle the UI steps through.
var groupingOrder = []Policy{
	GroupByAddr,
	GroupByPort,
	GroupByState,
	GroupByIface,
	GroupByCloud,
	GroupByCloudPort,
}

var groupingNames = map[Policy]string{
	GroupByAddr:      "address",
	GroupByPort:      "port",
	GroupByState:     "state",
	GroupByIface:     "interface",
	GroupByCloud:     "cloud",
	GroupByCloudPort: "cloud+port",
}

// GroupingName returns the display name of a grouping policy.
func GroupingName(p Policy) string {
	if n, ok := groupingNames[p]; ok {
		return n
	}
	return "custom"
}

// ParseGrouping maps a config/CLI grouping name to its policy.
func ParseGrouping(s string) (Policy, error) {
	switch s {
	case "address", "addr":
		return GroupByAddr, nil
	case "port":
		return GroupByPort, nil
	case "state":
		return GroupByState, nil
	case "interface", "if":
		return GroupByIface, nil
	case "cloud":
		return GroupByCloud, nil
	case "cloud+port", "cloudport":
		return GroupByCloudPort, nil
	default:
		return 0, errors.Errorf(errors.KindValidation, "unknown grouping %q", s)
	}
}

// NextGrouping returns the policy following p in the UI cycle.
func NextGrouping(p Policy) Policy {
	for i, cand := range groupingOrder {
		if cand == p {
			return groupingOrder[(i+1)%len(groupingOrder)]
		}
	}
	return groupingOrder[0]
}

// ParseState maps a state name to its State value.
func ParseState(s string) (State, error) {
	for st, name := range stateNames {
		if name == s {
			return st, nil
		}
	}
	return 0, errors.Errorf(errors.KindValidation, "unknown state %q", s)
}
