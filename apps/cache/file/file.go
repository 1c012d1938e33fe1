// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package file provides a cache.Accessor that keeps the serialized token cache in a single
file, optionally encrypted with XChaCha20-Poly1305.

The whole cache is one document, so the partition key passed to Load and Save is not used.
Writes go to a temporary file that is renamed over the cache file, so a reader never sees
a partial document.
*/
package file

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/AzureAD/msal-iwa-go/apps/cache"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of the keys accepted by WithKey.
const KeySize = chacha20poly1305.KeySize

// Accessor stores the cache at a path. It is safe for concurrent use.
type Accessor struct {
	path string
	aead cipher.AEAD

	mu sync.Mutex
}

// Option is an optional argument to New.
type Option func(a *Accessor) error

// WithKey encrypts the cache file with key, which must be KeySize bytes.
func WithKey(key []byte) Option {
	return func(a *Accessor) error {
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return fmt.Errorf("invalid cache key: %w", err)
		}
		a.aead = aead
		return nil
	}
}

// New creates an Accessor for the cache file at path. The file and its directory are
// created on the first Save.
func New(path string, options ...Option) (*Accessor, error) {
	if path == "" {
		return nil, errors.New("cache file path is required")
	}
	a := &Accessor{path: path}
	for _, o := range options {
		if err := o(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Load implements cache.Accessor. A missing file leaves the cache untouched.
func (a *Accessor) Load(ctx context.Context, c cache.Unmarshaler, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	b, err := os.ReadFile(a.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if b, err = a.open(b); err != nil {
		return fmt.Errorf("cache file %s: %w", a.path, err)
	}
	return c.Unmarshal(b)
}

// Save implements cache.Accessor.
func (a *Accessor) Save(ctx context.Context, c cache.Marshaler, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := c.Marshal()
	if err != nil {
		return err
	}
	if b, err = a.seal(b); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(a.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), a.path)
}

func (a *Accessor) seal(plaintext []byte) ([]byte, error) {
	if a.aead == nil {
		return plaintext, nil
	}
	nonce := make([]byte, a.aead.NonceSize(), a.aead.NonceSize()+len(plaintext)+a.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return a.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (a *Accessor) open(ciphertext []byte) ([]byte, error) {
	if a.aead == nil {
		return ciphertext, nil
	}
	if len(ciphertext) < a.aead.NonceSize() {
		return nil, errors.New("ciphertext is too short")
	}
	nonce, sealed := ciphertext[:a.aead.NonceSize()], ciphertext[a.aead.NonceSize():]
	b, err := a.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("could not decrypt, the key may be wrong: %w", err)
	}
	return b, nil
}
