// Package secrets provides the injectable key vault that turns encrypted
// signer material into usable signing handles. A Vault is constructed once at
// startup from the master key and passed to its consumers explicitly; there is
// no lazily-initialized global.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is an opaque signing handle for one agent wallet.
type Signer struct {
	key *ecdsa.PrivateKey
}

// Address returns the signer's wallet address.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// Key exposes the private key to the chain writer.
func (s *Signer) Key() *ecdsa.PrivateKey {
	return s.key
}

// NewSignerFromHex builds a signer from a raw hex private key. Used by
// seeding and tests; production signers come from Vault ciphertexts.
func NewSignerFromHex(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{key: key}, nil
}

// Vault decrypts agent signer material with a single master key.
type Vault struct {
	aead cipher.AEAD
}

// NewVault creates a vault from a 32-byte master key.
func NewVault(masterKey []byte) (*Vault, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(masterKey))
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext as nonce||ciphertext. Used when onboarding agents.
func (v *Vault) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce||ciphertext payload.
func (v *Vault) Decrypt(ciphertext []byte) ([]byte, error) {
	ns := v.aead.NonceSize()
	if len(ciphertext) <= ns {
		return nil, fmt.Errorf("ciphertext too short (%d bytes)", len(ciphertext))
	}
	plaintext, err := v.aead.Open(nil, ciphertext[:ns], ciphertext[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt signer material: %w", err)
	}
	return plaintext, nil
}

// Signer decrypts ciphertext into a signing handle.
func (v *Vault) Signer(ciphertext []byte) (*Signer, error) {
	raw, err := v.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parse decrypted key: %w", err)
	}
	return &Signer{key: key}, nil
}
