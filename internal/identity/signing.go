package identity

import (
	"crypto/ed25519"
	"encoding/base64"

	"github.com/sagenet/sage-hub/internal/model"
)

// Sign signs data with the keypair and returns the base64 signature.
func Sign(kp *KeyPair, data []byte) string {
	sig := ed25519.Sign(kp.priv, data)
	return base64.StdEncoding.EncodeToString(sig)
}

// Verify checks a base64 signature over data against a public key. A
// malformed base64 signature is an error; a wrong-length or mismatching
// signature verifies false.
func Verify(pub ed25519.PublicKey, data []byte, signatureB64 string) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false, &model.HubError{Kind: model.KindSerialization, Msg: "invalid signature base64: " + err.Error()}
	}
	if len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(pub, data, sig), nil
}

// VerifyWithKey verifies a signature using a base64-encoded public key.
func VerifyWithKey(publicKeyB64 string, data []byte, signatureB64 string) (bool, error) {
	pub, err := ParsePublicKey(publicKeyB64)
	if err != nil {
		return false, model.InvalidPublicKey(err.Error())
	}
	return Verify(pub, data, signatureB64)
}

// SignCanonical canonicalizes payload and signs the resulting bytes.
func SignCanonical(kp *KeyPair, payload any) (string, error) {
	data, err := CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	return Sign(kp, data), nil
}
