package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr, err := NewAddress(XPPrefix, raw)
	if err != nil {
		t.Fatalf("new address failed: %v", err)
	}
	encoded := addr.String()
	if !strings.HasPrefix(encoded, "xp1") {
		t.Fatalf("encoded address %q missing xp prefix", encoded)
	}

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("round trip changed payload: %x != %x", decoded.Bytes(), raw)
	}
	if decoded.Prefix() != XPPrefix {
		t.Fatalf("prefix = %q, want xp", decoded.Prefix())
	}
}

func TestNewAddressRejectsWrongLength(t *testing.T) {
	if _, err := NewAddress(XPPrefix, make([]byte, 19)); err == nil {
		t.Fatal("19-byte payload accepted")
	}
	if _, err := NewAddress(XPPrefix, make([]byte, 21)); err == nil {
		t.Fatal("21-byte payload accepted")
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "xp1", "not-bech32", "xp1qqqqqqqqqqqqqqq!"} {
		if _, err := DecodeAddress(bad); err == nil {
			t.Fatalf("decode(%q) accepted", bad)
		}
	}
}

func TestDeriveExperienceAddressDeterministic(t *testing.T) {
	var creator [20]byte
	creator[19] = 7

	first := DeriveExperienceAddress(creator, 0)
	again := DeriveExperienceAddress(creator, 0)
	if first != again {
		t.Fatal("derivation is not deterministic")
	}

	next := DeriveExperienceAddress(creator, 1)
	if first == next {
		t.Fatal("different nonces derived the same address")
	}

	var other [20]byte
	other[19] = 8
	if DeriveExperienceAddress(other, 0) == first {
		t.Fatal("different creators derived the same address")
	}
}

func TestGeneratedKeyProducesValidAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	addr := key.PubKey().Address()
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("derived address does not decode: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), addr.Bytes()) {
		t.Fatal("address round trip mismatch")
	}

	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored.PubKey().Address().String() != addr.String() {
		t.Fatal("restored key derives a different address")
	}
}
