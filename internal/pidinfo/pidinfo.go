// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package pidinfo implements follow mode: the dashboard tracks only
// the connections of chosen processes, one group per process, matched
// through the socket inodes behind each /proc/<pid>/fd entry.
package pidinfo

import (
	"strconv"
	"strings"

	ps "github.com/mitchellh/go-ps"
	"github.com/prometheus/procfs"

	"grimm.is/sockwatch/internal/conn"
	"grimm.is/sockwatch/internal/errors"
	"grimm.is/sockwatch/internal/logging"
)

// Proc is one followed process and its connection group.
type Proc struct {
	PID   int
	Name  string
	Group *conn.Group

	inodes map[uint64]struct{}
	dead   bool
}

// Dead reports whether the process has exited. Its group may still hold
// connections draining out of the system.
func (p *Proc) Dead() bool { return p.dead }

// Set holds the followed processes.
type Set struct {
	fs    procfs.FS
	procs []*Proc
	log   *logging.Logger
}

// NewSet creates a follow set for the given PIDs. Unknown PIDs are
// rejected up front rather than silently followed into nothing.
func NewSet(pids []int, log *logging.Logger) (*Set, error) {
	fs, err := procfs.NewFS(procfs.DefaultMountPoint)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "opening procfs")
	}
	s := &Set{fs: fs, log: log.WithComponent("pidinfo")}
	for _, pid := range pids {
		p, err := ps.FindProcess(pid)
		if err != nil || p == nil {
			return nil, errors.Errorf(errors.KindNotFound, "no such process: %d", pid)
		}
		s.procs = append(s.procs, &Proc{
			PID:    pid,
			Name:   p.Executable(),
			Group:  conn.NewGroup(),
			inodes: make(map[uint64]struct{}),
		})
	}
	return s, nil
}

// ScanInodes refreshes each process's socket inode set. Call once per
// round before ingesting observations.
func (s *Set) ScanInodes() {
	for _, p := range s.procs {
		if p.dead {
			continue
		}
		proc, err := s.fs.Proc(p.PID)
		if err != nil {
			s.log.Info("followed process gone", "pid", p.PID, "name", p.Name)
			p.dead = true
			// The kernel may hand the inodes to another process; stop
			// attributing them.
			p.inodes = make(map[uint64]struct{})
			continue
		}
		targets, err := proc.FileDescriptorTargets()
		if err != nil {
			s.log.Warn("reading fd targets failed", "pid", p.PID, "err", err)
			continue
		}
		for k := range p.inodes {
			delete(p.inodes, k)
		}
		for _, tgt := range targets {
			// Socket fds read as "socket:[12345]".
			if !strings.HasPrefix(tgt, "socket:[") {
				continue
			}
			num := strings.TrimSuffix(strings.TrimPrefix(tgt, "socket:["), "]")
			ino, err := strconv.ParseUint(num, 10, 64)
			if err != nil {
				continue
			}
			p.inodes[ino] = struct{}{}
		}
	}
}

// GroupForInode returns the group of the process owning the inode, or
// nil when no followed process does.
func (s *Set) GroupForInode(inode uint64) *conn.Group {
	if inode == 0 {
		return nil
	}
	for _, p := range s.procs {
		if _, ok := p.inodes[inode]; ok {
			return p.Group
		}
	}
	return nil
}

// Groups returns the per-process groups.
func (s *Set) Groups() []*conn.Group {
	out := make([]*conn.Group, len(s.procs))
	for i, p := range s.procs {
		out[i] = p.Group
	}
	return out
}

// Procs returns the followed processes.
func (s *Set) Procs() []*Proc { return s.procs }

// Reap drops dead processes whose groups have drained and reports how
// many processes are still worth watching. A dead process with
// connections left in the system stays until they die out. Zero means
// follow mode has nothing left to show.
func (s *Set) Reap() int {
	kept := s.procs[:0]
	for _, p := range s.procs {
		if p.dead && p.Group.Size() == 0 {
			s.log.Debug("reaping dead process", "pid", p.PID, "name", p.Name)
			continue
		}
		kept = append(kept, p)
	}
	s.procs = kept
	return len(s.procs)
}
