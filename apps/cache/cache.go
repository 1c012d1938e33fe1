// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package cache allows third parties to implement external storage for caching token data
for distributed systems or multiple local applications access.

The data stored and extracted will represent the entire cache. Therefore it is recommended
one client instance per user. This data is considered opaque and there are no guarantees to
implementers on the format being passed.

An Accessor is called around every cache read and write made during token acquisition:
Load before the in-memory cache is consulted and Save after it was changed.
*/
package cache

import (
	"context"
	"sync"
)

// Marshaler marshals data from an internal cache to bytes that can be stored.
type Marshaler interface {
	Marshal() ([]byte, error)
}

// Unmarshaler unmarshals data from a storage medium into the internal cache, overwriting it.
type Unmarshaler interface {
	Unmarshal([]byte) error
}

// Serializer can serialize the cache to binary or from binary into the cache.
type Serializer interface {
	Marshaler
	Unmarshaler
}

// Accessor moves the serialized cache between memory and external storage.
// Implementations should honor Context cancellations and return a context.Canceled or
// context.DeadlineExceeded in those cases.
type Accessor interface {
	// Load replaces the cache with what is in external storage. When storage holds
	// nothing for key, Load must leave the cache untouched and return nil.
	// key is the suggested key which can be used for partitioning the cache.
	Load(ctx context.Context, cache Unmarshaler, key string) error
	// Save writes the binary representation of the cache (cache.Marshal()) to
	// external storage. This is considered opaque.
	Save(ctx context.Context, cache Marshaler, key string) error
}

// Seed wraps an Accessor so that the first Load which finds nothing in storage loads
// data instead. This lets an application start from a known cache. A nil accessor is
// allowed, in which case only the seed is ever loaded and Save is a no-op.
func Seed(accessor Accessor, data []byte) Accessor {
	return &seeded{accessor: accessor, seed: data}
}

type seeded struct {
	accessor Accessor
	seed     []byte

	mu     sync.Mutex
	seeded bool
}

type recorder struct {
	Unmarshaler
	loaded bool
}

func (r *recorder) Unmarshal(b []byte) error {
	r.loaded = true
	return r.Unmarshaler.Unmarshal(b)
}

func (s *seeded) Load(ctx context.Context, cache Unmarshaler, key string) error {
	rec := &recorder{Unmarshaler: cache}
	if s.accessor != nil {
		if err := s.accessor.Load(ctx, rec, key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.loaded || s.seeded {
		s.seeded = true
		return nil
	}
	s.seeded = true
	return cache.Unmarshal(s.seed)
}

func (s *seeded) Save(ctx context.Context, cache Marshaler, key string) error {
	if s.accessor == nil {
		return nil
	}
	return s.accessor.Save(ctx, cache, key)
}
