package crypt

import "errors"

var (
	// ErrDecode is returned when an envelope is not valid standard base64.
	ErrDecode = errors.New("envelope is not valid base64")

	// ErrFormat is returned when a decoded envelope is too short or its
	// ciphertext is not a whole number of blocks.
	ErrFormat = errors.New("malformed envelope")

	// ErrAuthenticity is returned when the padding is invalid after
	// decryption. It almost always means the password was wrong or the
	// envelope was altered. CBC without a MAC cannot detect every such case:
	// roughly one wrong key in 256 yields garbage that still unpads.
	ErrAuthenticity = errors.New("wrong password or corrupted envelope")

	// ErrEncoding is returned when the decrypted bytes are not UTF-8.
	ErrEncoding = errors.New("decrypted data is not valid UTF-8")
)
