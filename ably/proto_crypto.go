package ably

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// CipherAlgorithm is a supported algorithm for channel encryption.
type CipherAlgorithm uint

const (
	CipherAES CipherAlgorithm = 1 + iota
)

func (c CipherAlgorithm) String() string {
	switch c {
	case CipherAES:
		return "aes"
	default:
		return ""
	}
}

func (c CipherAlgorithm) isValidKeyLength(l int) bool {
	switch c {
	case CipherAES:
		return l == 128 || l == 256
	default:
		return false
	}
}

// CipherMode is a supported cipher mode for channel encryption.
type CipherMode uint

const (
	CipherCBC CipherMode = 1 + iota
)

func (c CipherMode) String() string {
	switch c {
	case CipherCBC:
		return "cbc"
	default:
		return ""
	}
}

const (
	defaultCipherKeyLength = 256
	defaultCipherAlgorithm = CipherAES
	defaultCipherMode      = CipherCBC
)

// CipherParams configures the encryption of a channel's messages.
type CipherParams struct {
	Algorithm CipherAlgorithm
	// KeyLength is the length of Key in bits.
	KeyLength int
	Key       []byte
	Mode      CipherMode

	// iv is only set by tests comparing ciphertext with fixtures. A random
	// IV is used for every message otherwise.
	iv []byte
}

// channelCipher encrypts and decrypts channel messages.
type channelCipher interface {
	Encrypt(plainText []byte) ([]byte, error)
	Decrypt(cipherText []byte) ([]byte, error)
	GetAlgorithm() string
}

var _ channelCipher = (*cbcCipher)(nil)

// cbcCipher is AES in CBC mode with PKCS#7 padding. The IV is prepended to
// the ciphertext.
type cbcCipher struct {
	algorithm string
	block     cipher.Block
	iv        []byte
}

func newCBCCipher(params CipherParams) (*cbcCipher, error) {
	params, err := defaultCipherParams(params)
	if err != nil {
		return nil, err
	}
	if params.Algorithm != CipherAES {
		return nil, errors.New("unknown cipher algorithm")
	}
	if params.Mode != CipherCBC {
		return nil, errors.New("unknown cipher mode")
	}
	block, err := aes.NewCipher(params.Key)
	if err != nil {
		return nil, err
	}
	return &cbcCipher{
		algorithm: fmt.Sprintf("%s+%s-%d-%s", encCipher, params.Algorithm, params.KeyLength, params.Mode),
		block:     block,
		iv:        params.iv,
	}, nil
}

func (c *cbcCipher) Encrypt(plainText []byte) ([]byte, error) {
	padded := pkcs7Pad(plainText, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if c.iv != nil {
		copy(iv, c.iv)
	} else if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

func (c *cbcCipher) Decrypt(cipherText []byte) ([]byte, error) {
	if len(cipherText) < 2*aes.BlockSize || len(cipherText)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext of %d bytes is not a whole number of blocks after the IV", len(cipherText))
	}
	iv, body := cipherText[:aes.BlockSize], cipherText[aes.BlockSize:]
	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, body)
	return pkcs7Unpad(out, aes.BlockSize)
}

func (c *cbcCipher) GetAlgorithm() string {
	return c.algorithm
}

func pkcs7Pad(data []byte, blocklen int) []byte {
	padlen := blocklen - len(data)%blocklen
	p := make([]byte, len(data)+padlen)
	copy(p, data)
	for i := len(data); i < len(p); i++ {
		p[i] = byte(padlen)
	}
	return p
}

func pkcs7Unpad(data []byte, blocklen int) ([]byte, error) {
	if len(data) == 0 || len(data)%blocklen != 0 {
		return nil, fmt.Errorf("invalid data len %d", len(data))
	}
	padlen := int(data[len(data)-1])
	if padlen == 0 || padlen > blocklen {
		return nil, errors.New("invalid padding")
	}
	for _, p := range data[len(data)-padlen:] {
		if p != byte(padlen) {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padlen], nil
}
