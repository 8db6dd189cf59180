// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package cache

import "testing"

func keysOldestFirst(l *recencyList) []string {
	var keys []string
	for e := l.tail.prev; e != l.head; e = e.prev {
		keys = append(keys, e.key)
	}
	return keys
}

func TestRecencyList_Order(t *testing.T) {
	l := newRecencyList()
	if l.oldest() != nil {
		t.Fatal("expected empty list to have no oldest entry")
	}

	a, b, c := &Entry{key: "a"}, &Entry{key: "b"}, &Entry{key: "c"}
	l.pushFront(a)
	l.pushFront(b)
	l.pushFront(c)

	if got := l.oldest(); got != a {
		t.Errorf("oldest = %v, want a", got.key)
	}

	l.moveToFront(a)
	want := []string{"b", "c", "a"}
	got := keysOldestFirst(&l)
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRecencyList_UnlinkAndReset(t *testing.T) {
	l := newRecencyList()
	a, b := &Entry{key: "a"}, &Entry{key: "b"}
	l.pushFront(a)
	l.pushFront(b)

	l.unlink(a)
	if got := l.oldest(); got != b {
		t.Errorf("oldest after unlink = %q, want b", got.key)
	}
	if a.prev != nil || a.next != nil {
		t.Error("unlinked entry still points into the list")
	}

	l.reset()
	if l.oldest() != nil {
		t.Error("expected reset list to be empty")
	}
}
