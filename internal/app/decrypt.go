package app

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"sync"

	"vodfetch/internal/domain"
)

// Fetcher is the single network primitive the pipeline retrieves bytes with.
type Fetcher interface {
	Fetch(ctx context.Context, url string, byteRange domain.ByteRange) ([]byte, error)
}

// Decryptor turns fetched segment bytes into plaintext. Without a key ref it
// is a passthrough. Keys are resolved through the same fetch primitive as
// segments and cached for the lifetime of one title's download, so a key URI
// shared by many segments is fetched once.
type Decryptor struct {
	fetch Fetcher

	mu   sync.Mutex
	keys map[string][]byte
}

func NewDecryptor(fetch Fetcher) *Decryptor {
	return &Decryptor{fetch: fetch, keys: make(map[string][]byte)}
}

func (d *Decryptor) Decrypt(ctx context.Context, data []byte, seg domain.SegmentDescriptor) ([]byte, error) {
	if seg.Key == nil {
		return data, nil
	}
	if seg.Key.Method != domain.EncryptAES128 {
		return nil, &domain.DecryptError{Reason: fmt.Sprintf("unsupported cipher %q", seg.Key.Method)}
	}

	key, err := d.resolveKey(ctx, seg.Key.URI)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &domain.DecryptError{Reason: "bad key", Err: err}
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, &domain.DecryptError{Reason: fmt.Sprintf("ciphertext length %d not a block multiple", len(data))}
	}

	iv := seg.Key.IV
	if len(iv) == 0 {
		// Per HLS, the IV defaults to the media sequence number, big endian.
		iv = make([]byte, aes.BlockSize)
		binary.BigEndian.PutUint64(iv[8:], seg.Sequence)
	}
	if len(iv) != aes.BlockSize {
		return nil, &domain.DecryptError{Reason: fmt.Sprintf("iv length %d", len(iv))}
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)
	return stripPadding(plain)
}

func (d *Decryptor) resolveKey(ctx context.Context, uri string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if key, ok := d.keys[uri]; ok {
		return key, nil
	}
	key, err := d.fetch.Fetch(ctx, uri, domain.ByteRange{})
	if err != nil {
		return nil, &domain.DecryptError{Reason: "key fetch failed", Err: err}
	}
	if len(key) != 16 {
		return nil, &domain.DecryptError{Reason: fmt.Sprintf("key length %d, want 16", len(key))}
	}
	d.keys[uri] = key
	return key, nil
}

func stripPadding(plain []byte) ([]byte, error) {
	n := int(plain[len(plain)-1])
	if n == 0 || n > aes.BlockSize || n > len(plain) {
		return nil, &domain.DecryptError{Reason: "bad pkcs7 padding"}
	}
	for _, b := range plain[len(plain)-n:] {
		if int(b) != n {
			return nil, &domain.DecryptError{Reason: "bad pkcs7 padding"}
		}
	}
	return plain[:len(plain)-n], nil
}
