// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package file

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// document is a cache.Serializer holding raw bytes.
type document struct {
	data []byte
}

func (d *document) Marshal() ([]byte, error) {
	return d.data, nil
}

func (d *document) Unmarshal(b []byte) error {
	d.data = append([]byte(nil), b...)
	return nil
}

func TestLoadMissingFile(t *testing.T) {
	a, err := New(filepath.Join(t.TempDir(), "cache.json"))
	if err != nil {
		t.Fatal(err)
	}
	doc := &document{data: []byte("untouched")}
	if err := a.Load(context.Background(), doc, ""); err != nil {
		t.Fatal(err)
	}
	if string(doc.data) != "untouched" {
		t.Errorf("Load() changed the cache: %q", doc.data)
	}
}

func TestSaveLoad(t *testing.T) {
	tests := []struct {
		desc    string
		options []Option
	}{
		{desc: "plain"},
		{desc: "encrypted", options: []Option{WithKey(bytes.Repeat([]byte{7}, KeySize))}},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "cache.json")
			a, err := New(path, test.options...)
			if err != nil {
				t.Fatal(err)
			}
			want := []byte(`{"Account":{}}`)
			if err := a.Save(context.Background(), &document{data: want}, "uid.utid"); err != nil {
				t.Fatal(err)
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			encrypted := len(test.options) > 0
			if encrypted == bytes.Equal(raw, want) {
				t.Errorf("file content %q, encrypted: %v", raw, encrypted)
			}
			fi, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if fi.Mode().Perm()&0o077 != 0 {
				t.Errorf("cache file is readable by others: %v", fi.Mode())
			}

			// The key is a hint only; the whole cache is returned for any key.
			got := &document{}
			if err := a.Load(context.Background(), got, ""); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got.data, want) {
				t.Errorf("Load() = %q, want %q", got.data, want)
			}
			if matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp")); len(matches) != 0 {
				t.Errorf("temporary files were left behind: %v", matches)
			}
		})
	}
}

func TestWrongKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	a, err := New(path, WithKey(bytes.Repeat([]byte{1}, KeySize)))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Save(context.Background(), &document{data: []byte("secret")}, ""); err != nil {
		t.Fatal(err)
	}
	b, err := New(path, WithKey(bytes.Repeat([]byte{2}, KeySize)))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Load(context.Background(), &document{}, ""); err == nil {
		t.Fatal("Load() with the wrong key succeeded")
	}
}

func TestOptionsAndContext(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New() accepted an empty path")
	}
	if _, err := New("cache.bin", WithKey([]byte("short"))); err == nil {
		t.Error("New() accepted a short key")
	}

	a, err := New(filepath.Join(t.TempDir(), "cache.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Save(ctx, &document{data: []byte("x")}, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() = %v, want context.Canceled", err)
	}
	if err := a.Load(ctx, &document{}, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() = %v, want context.Canceled", err)
	}
}
