package vapid

import "fmt"

// ApplicationServer is the process-wide signer identity: the server VAPID
// keypair plus the contact subject. Built once at startup and injected into
// everything that sends; immutable afterwards.
type ApplicationServer struct {
	Subject  string
	material KeyMaterial
}

// NewApplicationServer imports the configured key strings and constructs the
// signer. Malformed key material is a fatal configuration error; callers must
// not attempt any send without a constructed server.
func NewApplicationServer(publicKey, privateKey, subject string) (*ApplicationServer, error) {
	if publicKey == "" || privateKey == "" {
		return nil, fmt.Errorf("vapid: public and private keys must both be configured")
	}
	if subject == "" {
		return nil, fmt.Errorf("vapid: contact subject must be configured")
	}

	pub, err := DecodeKeyString(publicKey)
	if err != nil {
		return nil, err
	}
	priv, err := DecodeKeyString(privateKey)
	if err != nil {
		return nil, err
	}

	m, err := NormalizeKeys(pub, priv)
	if err != nil {
		return nil, err
	}

	return &ApplicationServer{Subject: subject, material: m}, nil
}

// PublicKeyRaw returns the normalized 65-byte public key for publishing to
// clients that register new subscriptions against this server.
func (a *ApplicationServer) PublicKeyRaw() []byte {
	return a.material.PublicKeyBytes()
}

// VAPIDPublicKey returns the base64url public key for signing options.
func (a *ApplicationServer) VAPIDPublicKey() string {
	return a.material.PublicKeyB64()
}

// VAPIDPrivateKey returns the base64url private scalar for signing options.
func (a *ApplicationServer) VAPIDPrivateKey() string {
	return a.material.PrivateKeyB64()
}

// Keys exposes the normalized material, for callers assembling a JWK.
func (a *ApplicationServer) Keys() KeyMaterial {
	return a.material
}
