// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// BadgerStore is an L2 backed by an embedded Badger database. It serves
// single-node deployments that run without NATS.
//
// Badger expires keys at whole-second resolution, so the same envelope as
// NATSStore carries the exact expiry and Badger's TTL only reclaims space.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// NewBadgerStore opens a Badger database at dir, or an in-memory one when
// dir is empty.
func NewBadgerStore(dir string, clock func() time.Time) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	if clock == nil {
		clock = time.Now
	}
	return &BadgerStore{db: db, now: clock}, nil
}

// Get implements Store.
func (s *BadgerStore) Get(_ context.Context, key string) (Item, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, fmt.Errorf("badger get: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Item{}, false, fmt.Errorf("decode cache envelope: %w", err)
	}
	expiresAt := time.Unix(0, env.ExpiresAt)
	if s.now().After(expiresAt) {
		return Item{}, false, nil
	}
	return Item{Value: env.Value, ExpiresAt: expiresAt}, true, nil
}

// Set implements Store. value must be valid JSON.
func (s *BadgerStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := json.Marshal(envelope{
		ExpiresAt: s.now().Add(ttl).UnixNano(),
		Value:     value,
	})
	if err != nil {
		return fmt.Errorf("encode cache envelope: %w", err)
	}

	// Round up so Badger never drops a key before its envelope expires.
	native := ttl.Truncate(time.Second) + time.Second
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), data).WithTTL(native))
	})
}

// Delete implements Store.
func (s *BadgerStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// DeleteMatching implements Store.
func (s *BadgerStore) DeleteMatching(_ context.Context, pattern string) (int, error) {
	var matched [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().KeyCopy(nil)
			if matchKey(pattern, string(k)) {
				matched = append(matched, k)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan badger cache: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range matched {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("delete %s: %w", k, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush badger deletes: %w", err)
	}
	return len(matched), nil
}

// Stats implements Store.
func (s *BadgerStore) Stats(_ context.Context) StoreStats {
	st := StoreStats{Backend: "badger", Connected: !s.db.IsClosed()}

	lsm, vlog := s.db.Size()
	st.Bytes = uint64(lsm + vlog)

	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			st.Keys++
		}
		return nil
	})
	return st
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
