// Package identity provides the hub's cryptographic identity: Ed25519 key
// management, canonical JSON serialization, and signature creation and
// verification over canonical bytes.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

// KeyPair wraps an Ed25519 signing key.
type KeyPair struct {
	priv ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh random keypair.
func GenerateKeyPair() (*KeyPair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// KeyPairFromSeed builds a keypair from a 32-byte private seed.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid key length: expected %d, got %d", ed25519.SeedSize, len(seed))
	}
	return &KeyPair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// KeyPairFromBase64 builds a keypair from a base64-encoded 32-byte seed.
func KeyPairFromBase64(encoded string) (*KeyPair, error) {
	seed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 private key: %w", err)
	}
	return KeyPairFromSeed(seed)
}

// LoadKeyPair reads a 32-byte private seed from a file.
func LoadKeyPair(path string) (*KeyPair, error) {
	seed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return KeyPairFromSeed(seed)
}

// Save writes the private seed to a file with owner-only permissions.
func (k *KeyPair) Save(path string) error {
	return os.WriteFile(path, k.priv.Seed(), 0o600)
}

// Public returns the verifying key.
func (k *KeyPair) Public() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

// PublicKeyBase64 returns the 32 raw public key bytes, base64-encoded.
func (k *KeyPair) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(k.Public())
}

// PrivateKeyBase64 returns the private seed, base64-encoded.
func (k *KeyPair) PrivateKeyBase64() string {
	return base64.StdEncoding.EncodeToString(k.priv.Seed())
}

// ParsePublicKey decodes a base64-encoded 32-byte Ed25519 public key.
func ParsePublicKey(encoded string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid key length: expected %d, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
