// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
	"golang.org/x/crypto/blake2b"

	"github.com/bureau-foundation/tether/lib/secret"
)

// WorkFactor is the scrypt log2(N) used when sealing. The passphrase is
// a 256-bit derived key, not a human password, so heavy stretching buys
// nothing and would stall every session close.
const WorkFactor = 10

// maxPlaintext bounds what Open will read back.
const maxPlaintext = 4 << 20

// ErrTooLarge is returned by Open when the plaintext exceeds 4 MiB.
var ErrTooLarge = errors.New("sealed plaintext too large")

// PassphraseFor derives the sealing passphrase for purpose from an
// Ed25519 private key. Different purposes yield unrelated passphrases.
func PassphraseFor(key ed25519.PrivateKey, purpose string) (*secret.Buffer, error) {
	hash, err := blake2b.New256(key.Seed())
	if err != nil {
		return nil, fmt.Errorf("deriving passphrase: %w", err)
	}
	hash.Write([]byte("tether sealed v1\x00"))
	hash.Write([]byte(purpose))

	digest := hash.Sum(nil)
	encoded := make([]byte, hex.EncodedLen(len(digest)))
	hex.Encode(encoded, digest)
	secret.Zero(digest)

	passphrase, err := secret.NewFromBytes(encoded)
	if err != nil {
		return nil, fmt.Errorf("protecting passphrase: %w", err)
	}
	return passphrase, nil
}

// Seal encrypts plaintext to passphrase.
func Seal(plaintext []byte, passphrase *secret.Buffer) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(string(passphrase.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(WorkFactor)

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// Open decrypts ciphertext produced by Seal with the same passphrase.
func Open(ciphertext []byte, passphrase *secret.Buffer) ([]byte, error) {
	identity, err := age.NewScryptIdentity(string(passphrase.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	identity.SetMaxWorkFactor(WorkFactor)

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(io.LimitReader(reader, maxPlaintext+1))
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	if len(plaintext) > maxPlaintext {
		return nil, ErrTooLarge
	}
	return plaintext, nil
}

// WriteFile seals plaintext and replaces path with it atomically. The
// file is created with mode 0600.
func WriteFile(path string, plaintext []byte, passphrase *secret.Buffer) error {
	ciphertext, err := Seal(plaintext, passphrase)
	if err != nil {
		return err
	}

	temporary, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer os.Remove(temporary.Name())

	if _, err := temporary.Write(ciphertext); err != nil {
		temporary.Close()
		return fmt.Errorf("writing %s: %w", temporary.Name(), err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", temporary.Name(), err)
	}
	if err := os.Rename(temporary.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// ReadFile opens the sealed file at path. A missing file returns an
// error satisfying errors.Is(err, fs.ErrNotExist).
func ReadFile(path string, passphrase *secret.Buffer) ([]byte, error) {
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	plaintext, err := Open(ciphertext, passphrase)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return plaintext, nil
}
