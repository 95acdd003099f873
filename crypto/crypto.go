// SPDX-License-Identifier: GPL-3.0-only

package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"accountd/commons"

	"github.com/alexedwards/argon2id"
)

func NewCrypto() *Crypto {
	cfg := commons.GetConfig()
	return &Crypto{
		ArgonTime:    cfg.ArgonTime,
		ArgonMemory:  cfg.ArgonMemory,
		ArgonThreads: cfg.ArgonThreads,
		ArgonKeyLen:  cfg.ArgonKeyLen,
		ArgonSaltLen: cfg.ArgonSaltLen,
	}
}

func (c *Crypto) params() *argon2id.Params {
	return &argon2id.Params{
		Memory:      c.ArgonMemory,
		Iterations:  c.ArgonTime,
		Parallelism: c.ArgonThreads,
		SaltLength:  c.ArgonSaltLen,
		KeyLength:   c.ArgonKeyLen,
	}
}

func (c *Crypto) HashPassword(password string) (string, error) {
	hash, err := argon2id.CreateHash(password, c.params())
	if err != nil {
		return "", err
	}
	return hash, nil
}

// VerifyPassword returns nil only when password matches encodedHash. A
// malformed hash is reported as an error, never as a match.
func (c *Crypto) VerifyPassword(password, encodedHash string) error {
	match, err := argon2id.ComparePasswordAndHash(password, encodedHash)
	if err != nil {
		return err
	}
	if !match {
		return ErrPasswordMismatch
	}
	return nil
}

func (c *Crypto) CheckPassword(encodedHash, password string) bool {
	return c.VerifyPassword(password, encodedHash) == nil
}

func GenerateRandomString(prefix string, length int, encoding string) (string, error) {
	supported_encodings := []string{"hex", "base64", "base64url"}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	switch encoding {
	case "hex":
		return prefix + hex.EncodeToString(b), nil
	case "base64":
		return prefix + base64.StdEncoding.EncodeToString(b), nil
	case "base64url":
		return prefix + base64.RawURLEncoding.EncodeToString(b), nil
	default:
		return "", fmt.Errorf("unsupported encoding: %s, Supported encodings are: %s", encoding, supported_encodings)
	}
}
