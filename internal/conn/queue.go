// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package conn

import "grimm.is/sockwatch/internal/errors"

// Queue is an intrusive doubly linked list of connections, usable as a
// stack (Push prepends, Pop removes the head). A connection can be on at
// most one queue; groups use a Queue for their membership list.
//
// The zero value is ready to use.
type Queue struct {
	head *Conn
	size int
}

// Push prepends the connection to the queue. If the connection is already
// on a queue it is unlinked from it first; membership is exclusive.
func (q *Queue) Push(c *Conn) {
	if c.queue != nil {
		c.queue.Remove(c) //nolint:errcheck // membership just checked
	}
	c.prev = nil
	c.next = q.head
	if q.head != nil {
		q.head.prev = c
	}
	q.head = c
	c.queue = q
	q.size++
}

// Pop removes and returns the head of the queue, or nil when empty.
func (q *Queue) Pop() *Conn {
	c := q.head
	if c == nil {
		return nil
	}
	q.unlink(c)
	return c
}

// Remove unlinks the connection from the queue in O(1). Removing a
// connection that is not on this queue is reported as not found.
func (q *Queue) Remove(c *Conn) error {
	if c.queue != q {
		return errors.New(errors.KindNotFound, "connection not on this queue")
	}
	q.unlink(c)
	return nil
}

func (q *Queue) unlink(c *Conn) {
	if c.prev != nil {
		c.prev.next = c.next
	} else {
		q.head = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	}
	c.next = nil
	c.prev = nil
	c.queue = nil
	q.size--
}

// Head returns the first connection on the queue without removing it.
func (q *Queue) Head() *Conn { return q.head }

// Size returns the number of connections on the queue.
func (q *Queue) Size() int { return q.size }
