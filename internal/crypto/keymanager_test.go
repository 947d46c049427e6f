package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}

	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("round trip mismatch: got %s", got)
	}
}

func TestEncryptKeyAcceptsPrefixedHex(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("round trip mismatch: got %s", got)
	}
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	if _, err := EncryptKey(testKeyHex, ""); err == nil {
		t.Fatal("expected error for empty password")
	}
	if _, err := EncryptKey("not-hex", "hunter2"); err == nil {
		t.Fatal("expected error for non-hex key")
	}
	if _, err := EncryptKey("abcd", "hunter2"); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestDecryptKeyWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	if _, err := DecryptKey(blob, "*******"); err == nil {
		t.Fatal("expected decryption failure with wrong password")
	}
}

func TestDecryptKeyRejectsUnknownVersion(t *testing.T) {
	if _, err := DecryptKey([]byte(`{"version":99}`), "hunter2"); err == nil || !strings.Contains(err.Error(), "unsupported version") {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestLoadKeyPrefersRawKey(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex, EncryptedKeyPath: "/nonexistent"})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("LoadKey = %s, want raw key with prefix stripped", got)
	}
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}

	path := filepath.Join(t.TempDir(), "operator.key.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("LoadKey = %s, want decrypted key", got)
	}
}

func TestLoadKeyNoSourceConfigured(t *testing.T) {
	if _, err := LoadKey(KeyConfig{}); err == nil {
		t.Fatal("expected error when no key source is configured")
	}
}

func TestLoadECDSAKeyDerivesExpectedAddress(t *testing.T) {
	key, err := LoadECDSAKey(KeyConfig{RawPrivateKey: testKeyHex})
	if err != nil {
		t.Fatalf("LoadECDSAKey: %v", err)
	}

	want, err := ethcrypto.HexToECDSA(testKeyHex)
	if err != nil {
		t.Fatalf("HexToECDSA: %v", err)
	}
	if ethcrypto.PubkeyToAddress(key.PublicKey) != ethcrypto.PubkeyToAddress(want.PublicKey) {
		t.Fatal("parsed key does not match source material")
	}
}
