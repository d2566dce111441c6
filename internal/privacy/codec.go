// ABOUTME: Asymmetric encryption codec for private channels.
// ABOUTME: RSA-2048 keypair with OAEP-SHA256, base64 SPKI public key interchange.

package privacy

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrMissingKey indicates encryption was attempted for a peer whose public key
// has not been learned yet. The caller must complete the key exchange first.
var ErrMissingKey = errors.New("missing public key")

// ErrDecrypt indicates a ciphertext could not be decrypted with our private
// key. Non-fatal: callers substitute fallback text rather than tearing down
// the channel.
var ErrDecrypt = errors.New("decryption failed")

// Codec holds one process-lifetime RSA keypair and performs per-message
// encrypt/decrypt. The private key never leaves the process.
type Codec struct {
	key    *rsa.PrivateKey
	pubB64 string
}

// NewCodec generates a fresh 2048-bit keypair.
func NewCodec() (*Codec, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generating keypair: %w", err)
	}

	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("encoding public key: %w", err)
	}

	return &Codec{
		key:    key,
		pubB64: base64.StdEncoding.EncodeToString(spki),
	}, nil
}

// PublicKey returns the codec's public key as base64-encoded SPKI DER, the
// only key material ever transmitted. The format matches browser WebCrypto
// exports so human peers interoperate directly.
func (c *Codec) PublicKey() string {
	return c.pubB64
}

// Encrypt encrypts plaintext for a peer identified by its base64 SPKI public
// key and returns base64 ciphertext. An empty peer key yields ErrMissingKey.
func (c *Codec) Encrypt(plaintext, peerKeyB64 string) (string, error) {
	if peerKeyB64 == "" {
		return "", ErrMissingKey
	}

	pub, err := ParsePublicKey(peerKeyB64)
	if err != nil {
		return "", err
	}

	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(plaintext), nil)
	if err != nil {
		return "", fmt.Errorf("encrypting: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts base64 ciphertext with our private key.
func (c *Codec) Decrypt(ciphertextB64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("%w: bad base64: %v", ErrDecrypt, err)
	}

	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, c.key, raw, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plaintext), nil
}

// ParsePublicKey decodes a base64 SPKI DER public key into an RSA public key.
func ParsePublicKey(keyB64 string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("decoding public key base64: %w", err)
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}

	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unsupported public key type %T", parsed)
	}
	return pub, nil
}
