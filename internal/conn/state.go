// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package conn holds the connection tracking primitives: the tracked
// record itself, the tuple-keyed hash table, the intrusive membership
// queue, and the filter/group machinery used to classify records.
package conn

// State is the protocol state of a tracked TCP connection. Dead is not a
// protocol state; it marks a connection that is no longer observed but is
// kept visible while it lingers.
type State uint8

const (
	Dead State = iota
	Established
	SynSent
	SynRecv
	FinWait1
	FinWait2
	TimeWait
	Close
	CloseWait
	LastAck
	Listen
	Closing
)

var stateNames = map[State]string{
	Dead:        "DEAD",
	Established: "ESTABLISHED",
	SynSent:     "SYN_SENT",
	SynRecv:     "SYN_RECV",
	FinWait1:    "FIN_WAIT1",
	FinWait2:    "FIN_WAIT2",
	TimeWait:    "TIME_WAIT",
	Close:       "CLOSE",
	CloseWait:   "CLOSE_WAIT",
	LastAck:     "LAST_ACK",
	Listen:      "LISTEN",
	Closing:     "CLOSING",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// StateFromLinux maps the numeric state found in /proc/net/tcp (and the
// kernel's TCP_* enumeration) to a State. NEW_SYN_RECV (12) is reported
// as SynRecv. Unknown values map to Close.
func StateFromLinux(v uint64) State {
	switch v {
	case 1:
		return Established
	case 2:
		return SynSent
	case 3, 12:
		return SynRecv
	case 4:
		return FinWait1
	case 5:
		return FinWait2
	case 6:
		return TimeWait
	case 7:
		return Close
	case 8:
		return CloseWait
	case 9:
		return LastAck
	case 10:
		return Listen
	case 11:
		return Closing
	default:
		return Close
	}
}

// Dir is the direction of a connection relative to this host.
type Dir uint8

const (
	DirUnknown Dir = iota
	DirOutbound
	DirInbound
)

func (d Dir) String() string {
	switch d {
	case DirOutbound:
		return "out"
	case DirInbound:
		return "in"
	default:
		return "?"
	}
}

// Family is the address family of a connection's endpoints.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyIPv4
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "inet"
	case FamilyIPv6:
		return "inet6"
	default:
		return "?"
	}
}
