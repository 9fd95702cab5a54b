package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// KeySize is the length of a derived key (AES-256).
	KeySize = 32
	// IVSize is the length of the random IV that prefixes every envelope.
	IVSize = aes.BlockSize
)

// Codec encrypts text into base64 envelopes of the form IV || ciphertext
// using AES-256-CBC with PKCS#7 padding. The zero value is ready to use.
type Codec struct {
	// Rand is the source of IVs. Defaults to crypto/rand.Reader.
	Rand io.Reader
}

var std = &Codec{}

// Encrypt encrypts plain with a key derived from password using the default codec.
func Encrypt(plain, password string) (string, error) {
	return std.Encrypt(plain, password)
}

// Decrypt recovers the plaintext of an envelope using the default codec.
func Decrypt(envelope, password string) (string, error) {
	return std.Decrypt(envelope, password)
}

// DeriveKey turns a password into a 32 byte key: the UTF-8 bytes of the
// password right-padded with '0' and cut to 32 bytes. There is no salt and
// no stretching, so equal passwords always give equal keys.
func DeriveKey(password string) []byte {
	key := []byte(password)
	if len(key) < KeySize {
		key = append(key, bytes.Repeat([]byte{'0'}, KeySize-len(key))...)
	}
	return key[:KeySize]
}

// Encrypt returns base64(IV || AES-CBC(pad(plain))). The only possible error
// is a failing random source.
func (c *Codec) Encrypt(plain, password string) (string, error) {
	block, err := aes.NewCipher(DeriveKey(password))
	if err != nil {
		return "", err
	}
	padded := pad([]byte(plain))
	out := make([]byte, IVSize+len(padded))
	iv := out[:IVSize]
	if _, err := io.ReadFull(c.random(), iv); err != nil {
		return "", fmt.Errorf("read iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[IVSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Whitespace in envelope is ignored. Failures are
// reported as ErrDecode, ErrFormat, ErrAuthenticity or ErrEncoding.
func (c *Codec) Decrypt(envelope, password string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(stripSpace(envelope))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(data) < IVSize+aes.BlockSize || (len(data)-IVSize)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: envelope is %d bytes", ErrFormat, len(data))
	}
	block, err := aes.NewCipher(DeriveKey(password))
	if err != nil {
		return "", err
	}
	iv, ct := data[:IVSize], data[IVSize:]
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)
	pt, err = unpad(pt)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(pt) {
		return "", ErrEncoding
	}
	return string(pt), nil
}

func (c *Codec) random() io.Reader {
	if c.Rand != nil {
		return c.Rand
	}
	return rand.Reader
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(b []byte) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize {
		return nil, fmt.Errorf("%w: bad padding length %d", ErrAuthenticity, n)
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, fmt.Errorf("%w: inconsistent padding", ErrAuthenticity)
		}
	}
	return b[:len(b)-n], nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if r < utf8.RuneSelf && unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
