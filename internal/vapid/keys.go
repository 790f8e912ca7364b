// Package vapid normalizes persisted VAPID key material into the elliptic-curve
// coordinate form the push signing layer needs, and holds the application
// server keypair used to sign outgoing Web Push requests.
//
// Key material lands in configuration in whatever shape it was exported:
// a raw 65-byte uncompressed P-256 point, the same point without its 0x04
// marker, or a DER/SPKI wrapper; private keys as a raw 32-byte scalar or a
// PKCS#8 blob. Everything is reduced to fixed-length x/y/d scalars here, once,
// at startup.
package vapid

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

const (
	rawPublicKeyLen   = 65 // 0x04 || X(32) || Y(32)
	spkiPublicKeyLen  = 91 // DER/SPKI wrapper around the raw point
	coordLen          = 32
	uncompressedPoint = 0x04
)

// KeyMaterial holds a normalized P-256 keypair as fixed-length scalars.
type KeyMaterial struct {
	X []byte // 32 bytes
	Y []byte // 32 bytes
	D []byte // 32 bytes
}

// NormalizeKeys converts stored public/private key bytes into canonical
// coordinate form. It fails on anything that does not reduce to a well-formed
// P-256 keypair; no degraded signer is ever constructed.
func NormalizeKeys(pub, priv []byte) (KeyMaterial, error) {
	switch {
	case len(pub) == spkiPublicKeyLen:
		// SPKI wrapper: the raw uncompressed point is the trailing 65 bytes.
		pub = pub[len(pub)-rawPublicKeyLen:]
	case len(pub) == rawPublicKeyLen-1:
		// Raw coordinate pair missing the uncompressed-point marker.
		pub = append([]byte{uncompressedPoint}, pub...)
	}

	if len(pub) != rawPublicKeyLen || pub[0] != uncompressedPoint {
		return KeyMaterial{}, fmt.Errorf("vapid: public key is %d bytes after normalization, want %d starting with 0x04", len(pub), rawPublicKeyLen)
	}

	d, err := normalizePrivate(priv)
	if err != nil {
		return KeyMaterial{}, err
	}

	m := KeyMaterial{
		X: append([]byte(nil), pub[1:1+coordLen]...),
		Y: append([]byte(nil), pub[1+coordLen:rawPublicKeyLen]...),
		D: d,
	}
	return m, nil
}

func normalizePrivate(priv []byte) ([]byte, error) {
	if len(priv) == 0 {
		return nil, fmt.Errorf("vapid: private key is empty")
	}

	if len(priv) > coordLen {
		// PKCS#8 wrapper; import and extract the raw scalar.
		parsed, err := x509.ParsePKCS8PrivateKey(priv)
		if err != nil {
			return nil, fmt.Errorf("vapid: parse PKCS#8 private key: %w", err)
		}
		ec, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("vapid: PKCS#8 key is %T, want ECDSA", parsed)
		}
		if ec.Curve != elliptic.P256() {
			return nil, fmt.Errorf("vapid: private key curve is %s, want P-256", ec.Curve.Params().Name)
		}
		return ec.D.FillBytes(make([]byte, coordLen)), nil
	}

	// Raw scalar, left-padded to 32 bytes.
	d := make([]byte, coordLen)
	copy(d[coordLen-len(priv):], priv)
	return d, nil
}

// PublicKeyBytes returns the 65-byte uncompressed point.
func (m KeyMaterial) PublicKeyBytes() []byte {
	out := make([]byte, 0, rawPublicKeyLen)
	out = append(out, uncompressedPoint)
	out = append(out, m.X...)
	return append(out, m.Y...)
}

// PublicKeyB64 returns the base64url uncompressed point, the encoding the
// push signing library and browser clients expect.
func (m KeyMaterial) PublicKeyB64() string {
	return base64.RawURLEncoding.EncodeToString(m.PublicKeyBytes())
}

// PrivateKeyB64 returns the base64url raw scalar.
func (m KeyMaterial) PrivateKeyB64() string {
	return base64.RawURLEncoding.EncodeToString(m.D)
}

// JWK returns the x, y and d components as fixed-length base64url strings,
// suitable for assembling an EC JWK signing key.
func (m KeyMaterial) JWK() (x, y, d string) {
	return base64.RawURLEncoding.EncodeToString(m.X),
		base64.RawURLEncoding.EncodeToString(m.Y),
		base64.RawURLEncoding.EncodeToString(m.D)
}

// DecodeKeyString decodes configured key material from any common base64
// variant (raw/padded, url/std alphabet). Exports from different tooling
// disagree on which one they emit.
func DecodeKeyString(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	}
	var firstErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("vapid: decode key material: %w", firstErr)
}
