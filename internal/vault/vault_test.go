package vault

import (
	"errors"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New("test_password_123")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	for _, plaintext := range []string{"254712345678", "a", "payment ref TX-42", "☎ +254"} {
		ciphertext, err := v.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("encrypt %q: %v", plaintext, err)
		}
		if ciphertext == plaintext {
			t.Fatalf("ciphertext equals plaintext for %q", plaintext)
		}

		got, err := v.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("decrypt %q: %v", plaintext, err)
		}
		if got != plaintext {
			t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
		}
	}
}

func TestEncryptEmptyPassesThrough(t *testing.T) {
	v, err := New("test_password_123")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	ciphertext, err := v.Encrypt("")
	if err != nil {
		t.Fatalf("encrypt empty: %v", err)
	}
	if ciphertext != "" {
		t.Fatalf("expected empty ciphertext, got %q", ciphertext)
	}

	plaintext, err := v.Decrypt("")
	if err != nil {
		t.Fatalf("decrypt empty: %v", err)
	}
	if plaintext != "" {
		t.Fatalf("expected empty plaintext, got %q", plaintext)
	}
}

func TestDifferentPassphrasesAreIsolated(t *testing.T) {
	v1, err := New("password1")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	v2, err := New("password2")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	ciphertext, err := v1.Encrypt("254712345678")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := v2.Decrypt(ciphertext); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt under a different key, got %v", err)
	}
}

func TestSamePassphraseSharesKey(t *testing.T) {
	v1, err := New("shared")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	v2, err := New("shared")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	ciphertext, err := v1.Encrypt("254712345678")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := v2.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt with second instance: %v", err)
	}
	if got != "254712345678" {
		t.Fatalf("got %q", got)
	}
}

func TestDecryptMalformed(t *testing.T) {
	v, err := New("test_password_123")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	for _, ciphertext := range []string{"not base64!!", "YWJj", "AAAA"} {
		if _, err := v.Decrypt(ciphertext); !errors.Is(err, ErrDecrypt) {
			t.Fatalf("expected ErrDecrypt for %q, got %v", ciphertext, err)
		}
	}
}

func TestHash(t *testing.T) {
	h1 := Hash("254712345678")
	h2 := Hash("254712345678")
	h3 := Hash("254712345679")

	if len(h1) != 8 {
		t.Fatalf("expected 8-char hash, got %d (%q)", len(h1), h1)
	}
	if h1 != h2 {
		t.Fatalf("hash not stable: %q vs %q", h1, h2)
	}
	if h1 == h3 {
		t.Fatalf("distinct inputs produced identical hash %q", h1)
	}
	if h1 == "254712345678"[:8] {
		t.Fatalf("hash leaks input prefix")
	}
}

func TestNewRejectsEmptyPassphrase(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty passphrase")
	}
}
