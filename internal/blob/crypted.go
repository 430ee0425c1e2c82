package blob

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// Crypted wraps any Store with AES-256-GCM so no plaintext selfie ever rests
// in the backend. Each Put draws a fresh random nonce; the nonce is prepended
// to the ciphertext, GCM authenticates the rest.
type Crypted struct {
	inner Store
	aead  cipher.AEAD
}

// NewCrypted builds an encrypting wrapper from a hex-encoded 32-byte key.
func NewCrypted(inner Store, keyHex string) (*Crypted, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decode blob key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("blob key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Crypted{inner: inner, aead: aead}, nil
}

func (c *Crypted) Put(ctx context.Context, data []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, data, nil)
	return c.inner.Put(ctx, sealed)
}

func (c *Crypted) Get(ctx context.Context, ref string) ([]byte, error) {
	sealed, err := c.inner.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	ns := c.aead.NonceSize()
	if len(sealed) < ns {
		return nil, fmt.Errorf("blob %s: ciphertext shorter than nonce", ref)
	}
	plain, err := c.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("blob %s: decrypt: %w", ref, err)
	}
	return plain, nil
}

func (c *Crypted) Delete(ctx context.Context, ref string) error {
	return c.inner.Delete(ctx, ref)
}
