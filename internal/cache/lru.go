// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package cache

// recencyList is an intrusive doubly-linked list ordered by last access.
// head.next is the most recently accessed entry, tail.prev the least.
// Because every access moves its entry to the front, walking from the tail
// visits entries in ascending accessed-at order.
//
// The list is not synchronized; Memory guards it with its mutex.
type recencyList struct {
	head *Entry
	tail *Entry
}

func newRecencyList() recencyList {
	l := recencyList{head: &Entry{}, tail: &Entry{}}
	l.head.next = l.tail
	l.tail.prev = l.head
	return l
}

// pushFront adds an entry at the most recently used position.
func (l *recencyList) pushFront(e *Entry) {
	e.prev = l.head
	e.next = l.head.next
	l.head.next.prev = e
	l.head.next = e
}

// moveToFront moves an existing entry to the front of the list.
func (l *recencyList) moveToFront(e *Entry) {
	l.unlink(e)
	l.pushFront(e)
}

// unlink removes e from the list.
func (l *recencyList) unlink(e *Entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
}

// oldest returns the least recently accessed entry, or nil when empty.
func (l *recencyList) oldest() *Entry {
	if l.tail.prev == l.head {
		return nil
	}
	return l.tail.prev
}

// reset empties the list.
func (l *recencyList) reset() {
	l.head.next = l.tail
	l.tail.prev = l.head
}
