// Package encoding serializes store data for shared caches.
//
// Values are packed with msgpack and wrapped in one of two envelopes:
//   - Signed (default): base64 payload + HMAC signature, readable but
//     tamper-evident
//   - Sealed: AES-256-GCM, opaque to anyone without the key
//
// A cache shared between processes (Redis) can be written by anything with
// network access to it, so entries are only trusted after verification.
package encoding

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Sentinel errors returned by Decode.
var (
	ErrInvalidFormat    = errors.New("encoding: invalid format")
	ErrSignatureInvalid = errors.New("encoding: signature verification failed")
	ErrDecryptFailed    = errors.New("encoding: decryption failed")
)

// Encoder packs and unpacks cache entries. It is safe for concurrent use.
type Encoder struct {
	key []byte
	gcm cipher.AEAD
}

// NewEncoder creates an encoder. Keys shorter than 32 bytes are stretched
// with SHA-256.
func NewEncoder(key []byte) (*Encoder, error) {
	if len(key) < 32 {
		h := sha256.Sum256(key)
		key = h[:]
	}

	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Encoder{key: key, gcm: gcm}, nil
}

// Encode packs v. If sealed is true the payload is encrypted, otherwise it
// is signed.
func (e *Encoder) Encode(v any, sealed bool) (string, error) {
	packed, err := msgpack.Marshal(v)
	if err != nil {
		return "", err
	}
	if sealed {
		return e.encrypt(packed)
	}
	return e.sign(packed), nil
}

// Decode verifies (or decrypts) encoded and unpacks it into v, which must be
// a pointer.
func (e *Encoder) Decode(encoded string, sealed bool, v any) error {
	var (
		packed []byte
		err    error
	)
	if sealed {
		packed, err = e.decrypt(encoded)
	} else {
		packed, err = e.verify(encoded)
	}
	if err != nil {
		return err
	}

	if err := msgpack.Unmarshal(packed, v); err != nil {
		return errors.Join(ErrInvalidFormat, err)
	}
	return nil
}

// sign produces "payload.signature".
func (e *Encoder) sign(data []byte) string {
	mac := hmac.New(sha256.New, e.key)
	mac.Write(data)
	sig := mac.Sum(nil)[:16]
	return base64.RawURLEncoding.EncodeToString(data) + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func (e *Encoder) verify(encoded string) ([]byte, error) {
	payload, signature, ok := strings.Cut(encoded, ".")
	if !ok {
		return nil, ErrInvalidFormat
	}

	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	sig, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return nil, ErrInvalidFormat
	}

	mac := hmac.New(sha256.New, e.key)
	mac.Write(data)
	if !hmac.Equal(sig, mac.Sum(nil)[:16]) {
		return nil, ErrSignatureInvalid
	}
	return data, nil
}

func (e *Encoder) encrypt(data []byte) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(e.gcm.Seal(nonce, nonce, data, nil)), nil
}

func (e *Encoder) decrypt(encoded string) ([]byte, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	if len(ciphertext) < e.gcm.NonceSize() {
		return nil, ErrInvalidFormat
	}

	nonce, ciphertext := ciphertext[:e.gcm.NonceSize()], ciphertext[e.gcm.NonceSize():]
	data, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return data, nil
}
