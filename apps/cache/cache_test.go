// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package cache

import (
	"context"
	"errors"
	"testing"
)

type document struct {
	data  []byte
	loads int
}

func (d *document) Marshal() ([]byte, error) { return d.data, nil }

func (d *document) Unmarshal(b []byte) error {
	d.loads++
	d.data = append([]byte(nil), b...)
	return nil
}

// store is an Accessor over one byte slice.
type store struct {
	data    []byte
	loadErr error
}

func (s *store) Load(ctx context.Context, c Unmarshaler, key string) error {
	if s.loadErr != nil {
		return s.loadErr
	}
	if s.data == nil {
		return nil
	}
	return c.Unmarshal(s.data)
}

func (s *store) Save(ctx context.Context, c Marshaler, key string) error {
	b, err := c.Marshal()
	if err != nil {
		return err
	}
	s.data = b
	return nil
}

func TestSeedEmptyStore(t *testing.T) {
	backing := &store{}
	seeded := Seed(backing, []byte("seed"))
	ctx := context.Background()

	doc := &document{}
	if err := seeded.Load(ctx, doc, ""); err != nil {
		t.Fatal(err)
	}
	if string(doc.data) != "seed" {
		t.Fatalf("first Load() = %q, want the seed", doc.data)
	}

	// The seed is loaded once; later loads of an empty store leave the cache as it is.
	doc.data = []byte("changed")
	if err := seeded.Load(ctx, doc, ""); err != nil {
		t.Fatal(err)
	}
	if string(doc.data) != "changed" {
		t.Fatalf("second Load() = %q, want the in-memory cache kept", doc.data)
	}

	if err := seeded.Save(ctx, doc, ""); err != nil {
		t.Fatal(err)
	}
	if string(backing.data) != "changed" {
		t.Errorf("Save() did not reach the backing store: %q", backing.data)
	}
}

func TestSeedStoreWithData(t *testing.T) {
	seeded := Seed(&store{data: []byte("stored")}, []byte("seed"))

	doc := &document{}
	if err := seeded.Load(context.Background(), doc, ""); err != nil {
		t.Fatal(err)
	}
	if string(doc.data) != "stored" || doc.loads != 1 {
		t.Errorf("Load() = %q after %d loads, want only the stored data", doc.data, doc.loads)
	}
}

func TestSeedNilAccessor(t *testing.T) {
	seeded := Seed(nil, []byte("seed"))
	doc := &document{}
	if err := seeded.Load(context.Background(), doc, ""); err != nil {
		t.Fatal(err)
	}
	if string(doc.data) != "seed" {
		t.Errorf("Load() = %q, want the seed", doc.data)
	}
	if err := seeded.Save(context.Background(), doc, ""); err != nil {
		t.Errorf("Save() = %v, want nil", err)
	}
}

func TestSeedLoadError(t *testing.T) {
	want := errors.New("disk unavailable")
	seeded := Seed(&store{loadErr: want}, []byte("seed"))
	doc := &document{}
	if err := seeded.Load(context.Background(), doc, ""); !errors.Is(err, want) {
		t.Fatalf("Load() = %v, want %v", err, want)
	}
	if doc.data != nil {
		t.Error("a failed Load() must not seed the cache")
	}
}
