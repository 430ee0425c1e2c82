package blob

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twinsale/pkg/platform/sentinel"
)

var testKey = hex.EncodeToString(bytes.Repeat([]byte{0x42}, 32))

func TestCrypted_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	store, err := NewCrypted(mem, testKey)
	require.NoError(t, err)

	plain := []byte("selfie bytes")
	ref, err := store.Put(ctx, plain)
	require.NoError(t, err)

	got, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestCrypted_NoPlaintextAtRest(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	store, err := NewCrypted(mem, testKey)
	require.NoError(t, err)

	plain := []byte("recognizable face data")
	ref, err := store.Put(ctx, plain)
	require.NoError(t, err)

	// Reading through the raw backend must never expose the plaintext.
	raw, err := mem.Get(ctx, ref)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "recognizable")
	assert.NotEqual(t, plain, raw)
}

func TestCrypted_FreshNoncePerObject(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	store, err := NewCrypted(mem, testKey)
	require.NoError(t, err)

	plain := []byte("same payload twice")
	ref1, err := store.Put(ctx, plain)
	require.NoError(t, err)
	ref2, err := store.Put(ctx, plain)
	require.NoError(t, err)

	raw1, err := mem.Get(ctx, ref1)
	require.NoError(t, err)
	raw2, err := mem.Get(ctx, ref2)
	require.NoError(t, err)
	assert.NotEqual(t, raw1, raw2, "equal ciphertexts would mean a reused nonce")
}

func TestCrypted_RejectsBadKey(t *testing.T) {
	_, err := NewCrypted(NewMemory(), "not-hex")
	assert.Error(t, err)

	_, err = NewCrypted(NewMemory(), hex.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestCrypted_TamperedCiphertextFailsAuth(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	store, err := NewCrypted(mem, testKey)
	require.NoError(t, err)

	ref, err := store.Put(ctx, []byte("payload"))
	require.NoError(t, err)

	raw, err := mem.Get(ctx, ref)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, mem.Delete(ctx, ref))
	mem.blobs[ref] = raw

	_, err = store.Get(ctx, ref)
	assert.Error(t, err)
}

func TestMemory_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	ref, err := mem.Put(ctx, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, mem.Delete(ctx, ref))
	require.NoError(t, mem.Delete(ctx, ref))

	_, err = mem.Get(ctx, ref)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}
