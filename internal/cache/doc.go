// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

/*
Package cache provides the two-tier read cache that fronts the time-series
store and the spatial query engine.

# Overview

  - L1 (Memory): a bounded in-process map with per-entry TTL. When full it
    evicts the least recently accessed quartile of entries (or a single entry
    under the "lru" policy). Expired entries are swept opportunistically by
    Get and Set.
  - L2 (Store): a shared key-value store with its own, longer TTL. Backends
    are NATS JetStream KV (NewNATSStore) and Badger (NewBadgerStore).
  - Tiered: read-through L1 then L2, backfilling L1 on an L2 hit with
    min(remaining L2 TTL, L1 cap). Writes go to both tiers; L2 failures are
    logged and swallowed.

Values are stored as serialized JSON. Every logical key is prefixed with
"<namespace>:cache:<version>:" so bumping the version orphans old entries.

# Usage Example

	tiered := cache.NewTiered(cache.NewMemory(cache.MemoryConfig{MaxEntries: 1000}), l2, cache.Config{
		Namespace: "geomarket",
		Version:   "v1",
	})

	latest := cache.NewLoader(tiered, "latest", cache.LoaderOptions[string, models.Bar]{TTL: 5 * time.Minute},
		func(ctx context.Context, ticker string) (models.Bar, error) {
			return db.LatestBar(ctx, ticker)
		})

	bar, err := latest.Get(ctx, "AAPL")

# Pattern Clear

ClearPattern removes matching keys from L2 only. L1 cannot be searched by
pattern; callers that need an immediate reset also call ClearL1. Until then
L1 may serve a cleared key for at most its L1 TTL.

# Thread Safety

All types are safe for concurrent use.
*/
package cache
