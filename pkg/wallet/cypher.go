package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// EncryptionAlgorithm is the tag carried by every encrypted blob.
	EncryptionAlgorithm = "aes-256-gcm/pbkdf2-sha256"
	// MinKDFIterations is the lowest accepted number of PBKDF2 rounds.
	MinKDFIterations = 100000
	// MaxKDFIterations bounds the work a stored blob can ask for.
	MaxKDFIterations = 10000000

	saltSize  = 16
	nonceSize = 12
	keySize   = 32
)

// EncryptedBlob wraps any secret persisted by the wallet.
type EncryptedBlob struct {
	Algorithm  string `json:"algorithm"`
	Ciphertext []byte `json:"ciphertext"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Iterations int    `json:"iterations"`
}

// EncryptOpts is the struct given to Encrypt method
type EncryptOpts struct {
	PlainText  []byte
	Password   string
	Iterations int
}

func (o EncryptOpts) validate() error {
	if len(o.PlainText) <= 0 {
		return ErrNullPlainText
	}
	if len(o.Password) <= 0 {
		return ErrNullPassword
	}
	if o.Iterations != 0 && o.Iterations < MinKDFIterations {
		return ErrInvalidKDFIterations
	}
	if o.Iterations > MaxKDFIterations {
		return ErrInvalidKDFIterations
	}
	return nil
}

// Encrypt encrypts the plaintext with AES-256-GCM under a key derived from
// password with PBKDF2-HMAC-SHA256. Salt and nonce are generated fresh on
// every call.
func Encrypt(opts EncryptOpts) (*EncryptedBlob, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	iterations := opts.Iterations
	if iterations == 0 {
		iterations = MinKDFIterations
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	key := deriveKey([]byte(opts.Password), salt, iterations)
	defer Zero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	return &EncryptedBlob{
		Algorithm:  EncryptionAlgorithm,
		Ciphertext: gcm.Seal(nil, nonce, opts.PlainText, nil),
		Salt:       salt,
		Nonce:      nonce,
		Iterations: iterations,
	}, nil
}

// DecryptOpts is the struct given to Decrypt method
type DecryptOpts struct {
	Blob     *EncryptedBlob
	Password string
}

func (o DecryptOpts) validate() error {
	if o.Blob == nil {
		return ErrNullEncryptedBlob
	}
	if len(o.Password) <= 0 {
		return ErrNullPassword
	}
	return nil
}

// Decrypt returns the plaintext wrapped by the blob. Any failure after input
// validation, wrong password or tampered data alike, is reported as
// ErrAuthentication.
func Decrypt(opts DecryptOpts) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	blob := opts.Blob
	if blob.Algorithm != EncryptionAlgorithm ||
		len(blob.Salt) < saltSize || len(blob.Nonce) != nonceSize ||
		blob.Iterations < MinKDFIterations || blob.Iterations > MaxKDFIterations {
		return nil, ErrAuthentication
	}

	key := deriveKey([]byte(opts.Password), blob.Salt, blob.Iterations)
	defer Zero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, ErrAuthentication
	}
	plaintext, err := gcm.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// Zero overwrites the given secret in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func deriveKey(password, salt []byte, iterations int) []byte {
	return pbkdf2.Key(password, salt, iterations, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(blockCipher)
}
