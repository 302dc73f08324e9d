package clientcrypto

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"testing"
)

func TestRand_LengthUniq(t *testing.T) {
	t.Parallel()
	const n = 48
	a, err := Rand(n)
	if err != nil {
		t.Fatalf("Rand: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, _ := Rand(n)
	if bytes.Equal(a, b) {
		t.Fatalf("Rand produced equal slices")
	}
}

func TestDeriveKey_DeterministicAndSaltDependent(t *testing.T) {
	t.Parallel()
	pw := []byte("store-pass")
	s1 := []byte("salt-1")
	s2 := []byte("salt-2")
	k1 := DeriveKey(pw, s1)
	if len(k1) != KeyLen {
		t.Fatalf("key len=%d", len(k1))
	}
	if subtle.ConstantTimeCompare(k1, DeriveKey(pw, s1)) != 1 {
		t.Fatalf("DeriveKey not deterministic")
	}
	if subtle.ConstantTimeCompare(k1, DeriveKey(pw, s2)) != 0 {
		t.Fatalf("DeriveKey must change with salt")
	}
	if subtle.ConstantTimeCompare(k1, DeriveKey([]byte("other"), s1)) != 0 {
		t.Fatalf("DeriveKey must change with passphrase")
	}
}

func TestSealOpen_Roundtrip(t *testing.T) {
	t.Parallel()
	key := DeriveKey([]byte("pw"), []byte("salt"))
	plain := []byte(`"access-token"`)

	sealed, err := Seal(key, []byte("accessToken"), plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Fatalf("sealed value leaks plaintext")
	}

	out, err := Open(key, []byte("accessToken"), sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(out, plain) {
		t.Fatalf("open != original")
	}
}

func TestOpen_RejectsWrongKeyAADAndShortInput(t *testing.T) {
	t.Parallel()
	key := DeriveKey([]byte("pw"), []byte("salt"))
	sealed, err := Seal(key, []byte("cartItems"), []byte("[]"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := Open(DeriveKey([]byte("pw2"), []byte("salt")), []byte("cartItems"), sealed); err == nil {
		t.Fatalf("Open with wrong key must fail")
	}
	// a value copied into another slot must not open
	if _, err := Open(key, []byte("refreshToken"), sealed); err == nil {
		t.Fatalf("Open with wrong aad must fail")
	}
	if _, err := Open(key, nil, []byte{1, 2, 3}); !errors.Is(err, ErrSealedTooShort) {
		t.Fatalf("want ErrSealedTooShort, got %v", err)
	}
	if _, err := Seal([]byte("short"), nil, []byte("x")); err == nil {
		t.Fatalf("Seal with bad key size must fail")
	}
}
