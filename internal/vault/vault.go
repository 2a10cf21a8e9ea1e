// Package vault seals secrets (tokens, API keys, webhook URLs) for storage at
// rest. Envelopes are AES-256-CBC encrypted and authenticated with
// HMAC-SHA256; tampered or foreign envelopes fail with ErrIntegrity.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// DefaultPassphrase is used when no passphrase is configured. It is only
// suitable for local development.
const DefaultPassphrase = "streamcaster-local-dev-key"

// InvalidPreview is returned by Preview when an envelope cannot be opened.
const InvalidPreview = "invalid-secret"

const (
	keySize = 32
	ivSize  = aes.BlockSize

	hkdfInfoEncryption = "streamcaster-vault-encryption"
	hkdfInfoIntegrity  = "streamcaster-vault-integrity"
)

// ErrIntegrity is returned by Open for tampered, foreign-key or malformed
// envelopes. No plaintext is ever returned alongside it.
var ErrIntegrity = errors.New("secret envelope failed integrity check")

// Vault seals and opens secret strings with a key fixed at construction.
// It holds no mutable state and is safe for concurrent use.
type Vault struct {
	encKey []byte
	macKey []byte
}

// New derives the vault key from passphrase with SHA-256. An empty passphrase
// falls back to DefaultPassphrase.
func New(passphrase string) *Vault {
	if passphrase == "" {
		passphrase = DefaultPassphrase
	}
	master := sha256.Sum256([]byte(passphrase))
	v, err := NewWithKey(master[:])
	if err != nil {
		// Unreachable: master is always keySize bytes.
		panic(err)
	}
	return v
}

// NewWithKey builds a Vault from a 32-byte master key. Separate encryption and
// integrity subkeys are expanded from it with HKDF-SHA256.
func NewWithKey(master []byte) (*Vault, error) {
	if len(master) != keySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", keySize, len(master))
	}

	encKey, err := expand(master, hkdfInfoEncryption)
	if err != nil {
		return nil, err
	}
	macKey, err := expand(master, hkdfInfoIntegrity)
	if err != nil {
		return nil, err
	}

	return &Vault{encKey: encKey, macKey: macKey}, nil
}

func expand(master []byte, info string) ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("hkdf expand %s: %w", info, err)
	}
	return key, nil
}

// Seal encrypts plaintext under a fresh random IV and returns the encoded
// envelope. Sealing the same plaintext twice yields different envelopes.
func (v *Vault) Seal(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("rand iv: %w", err)
	}

	block, err := aes.NewCipher(v.encKey)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}

	padded := pad([]byte(plaintext))
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	env := Envelope{IV: iv, Ciphertext: ciphertext}
	env.Tag = v.tag(env.signedPart())
	return env.String(), nil
}

// Open verifies and decrypts an envelope. The integrity tag is checked before
// any decryption is attempted.
func (v *Vault) Open(encoded string) (string, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("envelope has %d fields: %w", len(parts), ErrIntegrity)
	}

	stored, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("decode tag: %w", ErrIntegrity)
	}
	if !hmac.Equal(stored, v.tag(parts[0]+":"+parts[1])) {
		return "", ErrIntegrity
	}

	env, err := ParseEnvelope(encoded)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(v.encKey)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}

	plain := make([]byte, len(env.Ciphertext))
	cipher.NewCBCDecrypter(block, env.IV).CryptBlocks(plain, env.Ciphertext)

	unpadded, err := unpad(plain)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

// Preview returns a masked rendering of the sealed secret for display. It
// returns InvalidPreview when the envelope cannot be opened.
func (v *Vault) Preview(encoded string) string {
	secret, err := v.Open(encoded)
	if err != nil {
		return InvalidPreview
	}
	return Mask(secret)
}

// Mask hides all but a few characters of secret. Secrets longer than 12
// characters keep their first 4 and last 2; shorter ones keep only the last 2.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}

	runes := []rune(secret)
	tail := string(runes[max(len(runes)-2, 0):])
	if len(runes) > 12 {
		return string(runes[:4]) + "…" + tail
	}
	return "•••" + tail
}

func (v *Vault) tag(signed string) []byte {
	mac := hmac.New(sha256.New, v.macKey)
	mac.Write([]byte(signed))
	return mac.Sum(nil)
}

// Envelope is the decoded form of a sealed secret.
type Envelope struct {
	IV         []byte
	Ciphertext []byte
	Tag        []byte
}

// ParseEnvelope decodes "iv:ciphertext:tag" (base64, base64, hex). It checks
// structure only; use Vault.Open to verify the tag.
func ParseEnvelope(encoded string) (Envelope, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return Envelope{}, fmt.Errorf("envelope has %d fields: %w", len(parts), ErrIntegrity)
	}

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return Envelope{}, fmt.Errorf("decode iv: %w", ErrIntegrity)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return Envelope{}, fmt.Errorf("decode ciphertext: %w", ErrIntegrity)
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil || len(tag) != sha256.Size {
		return Envelope{}, fmt.Errorf("decode tag: %w", ErrIntegrity)
	}

	return Envelope{IV: iv, Ciphertext: ct, Tag: tag}, nil
}

// String encodes the envelope in its storage form.
func (e Envelope) String() string {
	return e.signedPart() + ":" + hex.EncodeToString(e.Tag)
}

func (e Envelope) signedPart() string {
	return base64.StdEncoding.EncodeToString(e.IV) + ":" + base64.StdEncoding.EncodeToString(e.Ciphertext)
}

// pad applies PKCS#7 padding to a whole number of AES blocks.
func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty plaintext: %w", ErrIntegrity)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, fmt.Errorf("bad padding: %w", ErrIntegrity)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("bad padding: %w", ErrIntegrity)
		}
	}
	return b[:len(b)-n], nil
}
