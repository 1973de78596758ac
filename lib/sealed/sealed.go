// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/bureau-foundation/wscontext/lib/secret"
)

// Keypair is an age x25519 keypair. The private key lives in a
// secret.Buffer; the public key is safe to publish.
type Keypair struct {
	// PrivateKey is the AGE-SECRET-KEY-1... encoding. Never log it.
	PrivateKey *secret.Buffer

	// PublicKey is the age1... encoding.
	PublicKey string
}

// Close releases the private key memory. Idempotent.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair creates a new keypair. The caller must Close it.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("sealed: generating keypair: %w", err)
	}

	// identity.String() leaves a heap copy; the buffer is the one the
	// caller keeps.
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting private key: %w", err)
	}

	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// Encrypt seals plaintext to every recipient (age1... public keys) and
// returns base64 ciphertext.
func Encrypt(plaintext []byte, recipientKeys []string) (string, error) {
	if len(recipientKeys) == 0 {
		return "", fmt.Errorf("sealed: at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return "", fmt.Errorf("sealed: parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return "", fmt.Errorf("sealed: creating encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("sealed: writing plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("sealed: finalizing: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}

// ParsePublicKey validates an age x25519 public key.
func ParsePublicKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("sealed: invalid public key: %w", err)
	}
	return nil
}

// Opener decrypts values sealed to one identity. It parses the
// identity once, so a long-lived store does not re-read the key
// buffer for every value. Safe for concurrent use.
type Opener struct {
	identity  *age.X25519Identity
	recipient string
}

// NewOpener parses privateKey. The buffer is only read; the caller
// keeps ownership and may Close it afterwards.
func NewOpener(privateKey *secret.Buffer) (*Opener, error) {
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("sealed: invalid private key: %w", err)
	}
	return &Opener{
		identity:  identity,
		recipient: identity.Recipient().String(),
	}, nil
}

// Recipient returns the public key matching the opener's identity, for
// sealing values the opener can later open.
func (o *Opener) Recipient() string {
	return o.recipient
}

// Open decrypts base64 ciphertext. An empty plaintext yields a nil
// buffer and no error. The caller must Close a non-nil buffer.
func (o *Opener) Open(ciphertext string) (*secret.Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("sealed: decoding base64 ciphertext: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(raw), o.identity)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}

	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, nil
	}

	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting plaintext: %w", err)
	}
	return buffer, nil
}
