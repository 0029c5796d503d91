package secrets

import (
	"bytes"
	"encoding/hex"
	"testing"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, 32)
	v, err := NewVault(key)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	return v
}

func TestNewVault_RejectsWrongKeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33} {
		if _, err := NewVault(make([]byte, n)); err == nil {
			t.Errorf("Expected error for %d-byte master key", n)
		}
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	v := newTestVault(t)
	plaintext := []byte("signer material")

	ct, err := v.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(ct, plaintext) {
		t.Error("Ciphertext leaks plaintext")
	}

	got, err := v.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Round trip mismatch: %q", got)
	}
}

func TestEncrypt_NonceVariesPerCall(t *testing.T) {
	v := newTestVault(t)
	a, _ := v.Encrypt([]byte("same"))
	b, _ := v.Encrypt([]byte("same"))
	if bytes.Equal(a, b) {
		t.Error("Two encryptions of the same plaintext must differ")
	}
}

func TestDecrypt_RejectsTamperedCiphertext(t *testing.T) {
	v := newTestVault(t)
	ct, _ := v.Encrypt([]byte("signer material"))
	ct[len(ct)-1] ^= 0xff
	if _, err := v.Decrypt(ct); err == nil {
		t.Fatal("Expected error for tampered ciphertext")
	}
}

func TestDecrypt_RejectsShortCiphertext(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Decrypt([]byte{0x01, 0x02}); err == nil {
		t.Fatal("Expected error for truncated ciphertext")
	}
}

func TestDecrypt_RejectsOtherVaultsCiphertext(t *testing.T) {
	v1 := newTestVault(t)
	v2, err := NewVault(bytes.Repeat([]byte{0x07}, 32))
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	ct, _ := v1.Encrypt([]byte("signer material"))
	if _, err := v2.Decrypt(ct); err == nil {
		t.Fatal("Expected error decrypting with the wrong master key")
	}
}

func TestSigner_FromEncryptedRawKey(t *testing.T) {
	v := newTestVault(t)
	raw, err := hex.DecodeString(testKeyHex)
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	ct, err := v.Encrypt(raw)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	signer, err := v.Signer(ct)
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}

	want, err := NewSignerFromHex(testKeyHex)
	if err != nil {
		t.Fatalf("NewSignerFromHex: %v", err)
	}
	if signer.Address() != want.Address() {
		t.Errorf("Vault signer address %s, want %s", signer.Address(), want.Address())
	}
}

func TestSigner_RejectsGarbageKeyMaterial(t *testing.T) {
	v := newTestVault(t)
	ct, _ := v.Encrypt([]byte("not a private key"))
	if _, err := v.Signer(ct); err == nil {
		t.Fatal("Expected error for non-key material")
	}
}

func TestNewSignerFromHex_AcceptsPrefix(t *testing.T) {
	a, err := NewSignerFromHex(testKeyHex)
	if err != nil {
		t.Fatalf("bare hex: %v", err)
	}
	b, err := NewSignerFromHex("0x" + testKeyHex)
	if err != nil {
		t.Fatalf("0x hex: %v", err)
	}
	if a.Address() != b.Address() {
		t.Error("Prefix handling changed the derived address")
	}
}
