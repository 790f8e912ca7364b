package vapid

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"testing"
)

func generateTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func rawPoint(key *ecdsa.PrivateKey) []byte {
	out := []byte{0x04}
	out = append(out, key.PublicKey.X.FillBytes(make([]byte, 32))...)
	return append(out, key.PublicKey.Y.FillBytes(make([]byte, 32))...)
}

func TestNormalizeKeysPublicEncodings(t *testing.T) {
	key := generateTestKey(t)
	raw := rawPoint(key)
	d := key.D.FillBytes(make([]byte, 32))

	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal SPKI: %v", err)
	}
	if len(spki) != 91 {
		t.Fatalf("expected 91-byte SPKI encoding, got %d", len(spki))
	}

	tests := []struct {
		name string
		pub  []byte
	}{
		{name: "raw 65-byte point", pub: raw},
		{name: "64-byte point without marker", pub: raw[1:]},
		{name: "91-byte SPKI", pub: spki},
	}

	var want KeyMaterial
	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeKeys(tc.pub, d)
			if err != nil {
				t.Fatalf("NormalizeKeys: %v", err)
			}
			if len(got.X) != 32 || len(got.Y) != 32 || len(got.D) != 32 {
				t.Fatalf("expected 32-byte scalars, got x=%d y=%d d=%d", len(got.X), len(got.Y), len(got.D))
			}
			if i == 0 {
				want = got
				return
			}
			if !bytes.Equal(got.X, want.X) || !bytes.Equal(got.Y, want.Y) {
				t.Fatalf("encoding %q produced different coordinates", tc.name)
			}
		})
	}
}

func TestNormalizeKeysPKCS8Private(t *testing.T) {
	key := generateTestKey(t)
	raw := rawPoint(key)

	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal PKCS#8: %v", err)
	}

	fromRaw, err := NormalizeKeys(raw, key.D.FillBytes(make([]byte, 32)))
	if err != nil {
		t.Fatalf("NormalizeKeys raw: %v", err)
	}
	fromPKCS8, err := NormalizeKeys(raw, pkcs8)
	if err != nil {
		t.Fatalf("NormalizeKeys pkcs8: %v", err)
	}
	if !bytes.Equal(fromRaw.D, fromPKCS8.D) {
		t.Fatal("PKCS#8 and raw scalar produced different d")
	}
}

func TestNormalizeKeysRejectsMalformedPublic(t *testing.T) {
	key := generateTestKey(t)
	d := key.D.FillBytes(make([]byte, 32))

	for _, size := range []int{0, 1, 33, 63, 66, 90, 92, 128} {
		if _, err := NormalizeKeys(make([]byte, size), d); err == nil {
			t.Fatalf("expected error for %d-byte public key", size)
		}
	}

	// Right length, wrong point marker.
	bad := rawPoint(key)
	bad[0] = 0x02
	if _, err := NormalizeKeys(bad, d); err == nil {
		t.Fatal("expected error for compressed point marker")
	}
}

func TestNormalizeKeysRejectsBadPrivate(t *testing.T) {
	key := generateTestKey(t)
	raw := rawPoint(key)

	if _, err := NormalizeKeys(raw, nil); err == nil {
		t.Fatal("expected error for empty private key")
	}
	// Longer than 32 bytes but not valid PKCS#8.
	if _, err := NormalizeKeys(raw, make([]byte, 40)); err == nil {
		t.Fatal("expected error for garbage PKCS#8 blob")
	}
}

func TestApplicationServerRoundTrip(t *testing.T) {
	key := generateTestKey(t)
	pub := base64.RawURLEncoding.EncodeToString(rawPoint(key))
	priv := base64.RawURLEncoding.EncodeToString(key.D.FillBytes(make([]byte, 32)))

	app, err := NewApplicationServer(pub, priv, "mailto:support@drysense.app")
	if err != nil {
		t.Fatalf("NewApplicationServer: %v", err)
	}
	if got := app.VAPIDPublicKey(); got != pub {
		t.Fatalf("public key round trip mismatch: got %q want %q", got, pub)
	}
	if got := app.VAPIDPrivateKey(); got != priv {
		t.Fatalf("private key round trip mismatch: got %q want %q", got, priv)
	}
	if len(app.PublicKeyRaw()) != 65 {
		t.Fatalf("expected 65-byte raw public key, got %d", len(app.PublicKeyRaw()))
	}

	x, y, d := app.Keys().JWK()
	for name, v := range map[string]string{"x": x, "y": y, "d": d} {
		decoded, err := base64.RawURLEncoding.DecodeString(v)
		if err != nil {
			t.Fatalf("JWK %s is not base64url: %v", name, err)
		}
		if len(decoded) != 32 {
			t.Fatalf("JWK %s is %d bytes, want 32", name, len(decoded))
		}
	}
}

func TestDecodeKeyStringVariants(t *testing.T) {
	payload := []byte{0xfb, 0x01, 0x7e, 0xff, 0xa0, 0x41}
	variants := []string{
		base64.RawURLEncoding.EncodeToString(payload),
		base64.URLEncoding.EncodeToString(payload),
		base64.StdEncoding.EncodeToString(payload),
	}
	for _, v := range variants {
		got, err := DecodeKeyString(v)
		if err != nil {
			t.Fatalf("DecodeKeyString(%q): %v", v, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("DecodeKeyString(%q) = %x, want %x", v, got, payload)
		}
	}
	if _, err := DecodeKeyString("not base64 at all!!!"); err == nil {
		t.Fatal("expected decode error")
	}
}
