package tokenstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var errUnseal = errors.New("tokenstore: cannot unseal value")

// SealedKV encrypts values at rest with secretbox. Keys stay in clear text.
type SealedKV struct {
	next KV
	key  [32]byte
}

func NewSealedKV(next KV, secret []byte) *SealedKV {
	return &SealedKV{next: next, key: sha256.Sum256(secret)}
}

func (s *SealedKV) Get(ctx context.Context, clientID, key string) (string, bool, error) {
	v, ok, err := s.next.Get(ctx, clientID, key)
	if err != nil || !ok {
		return v, ok, err
	}
	plain, err := s.open(v)
	if err != nil {
		// A value sealed with another secret is as good as absent.
		return "", false, nil
	}
	return plain, true, nil
}

func (s *SealedKV) Set(ctx context.Context, clientID string, values map[string]string, ttl time.Duration) error {
	sealed := make(map[string]string, len(values))
	for k, v := range values {
		sv, err := s.seal(v)
		if err != nil {
			return err
		}
		sealed[k] = sv
	}
	return s.next.Set(ctx, clientID, sealed, ttl)
}

func (s *SealedKV) Delete(ctx context.Context, clientID string, keys ...string) error {
	return s.next.Delete(ctx, clientID, keys...)
}

func (s *SealedKV) seal(v string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("tokenstore: nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(v), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *SealedKV) open(v string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil || len(raw) < nonceSize {
		return "", errUnseal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errUnseal
	}
	return string(plain), nil
}
