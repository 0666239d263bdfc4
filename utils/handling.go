package utils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Encrypter turns a plaintext into the envelope the vendor expects. Output is
// deterministic for identical inputs only when the salt source is fixed; the
// default Cipher draws a fresh salt from crypto/rand per call.
type Encrypter interface {
	Encrypt(plaintext, key string) (string, error)
}

// Cipher is the CryptoJS passphrase scheme the game core uses for guesses:
// EVP_BytesToKey(md5) over key+salt, AES-256-CBC, PKCS7.
type Cipher struct {
	// Salt source, crypto/rand when nil
	Rand io.Reader
}

type EncryptedData struct {
	CT string `json:"ct"`
	IV string `json:"iv"`
	S  string `json:"s"`
}

func (c Cipher) Encrypt(plaintext, key string) (string, error) {
	salt := make([]byte, 8)
	source := c.Rand
	if source == nil {
		source = rand.Reader
	}
	if _, err := io.ReadFull(source, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	derived := BytesToKey(key, salt, 48)
	keyBytes, ivBytes := derived[:32], derived[32:]

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}

	padded := PKCS7Padding([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, ivBytes).CryptBlocks(ciphertext, padded)

	// field order is fixed, the game core sends ct, iv, s
	return fmt.Sprintf(`{"ct":"%s","iv":"%s","s":"%s"}`,
		base64.StdEncoding.EncodeToString(ciphertext),
		hex.EncodeToString(ivBytes),
		hex.EncodeToString(salt)), nil
}

func (c Cipher) Decrypt(envelope, key string) (string, error) {
	var data EncryptedData
	if err := json.Unmarshal([]byte(envelope), &data); err != nil {
		return "", fmt.Errorf("failed to parse encrypted data: %w", err)
	}

	salt, err := hex.DecodeString(data.S)
	if err != nil {
		return "", fmt.Errorf("invalid salt: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(data.CT)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext is not a multiple of the block size")
	}

	derived := BytesToKey(key, salt, 48)
	block, err := aes.NewCipher(derived[:32])
	if err != nil {
		return "", err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, derived[32:]).CryptBlocks(plaintext, ciphertext)

	paddingLen := int(plaintext[len(plaintext)-1])
	if paddingLen == 0 || paddingLen > aes.BlockSize {
		return "", errors.New("invalid padding")
	}
	for _, b := range plaintext[len(plaintext)-paddingLen:] {
		if int(b) != paddingLen {
			return "", errors.New("invalid padding byte")
		}
	}

	return string(plaintext[:len(plaintext)-paddingLen]), nil
}

// OpenSSL EVP_BytesToKey, md5, one iteration
func BytesToKey(password string, salt []byte, size int) []byte {
	var key, block []byte
	hasher := md5.New()

	for len(key) < size {
		if block != nil {
			hasher.Write(block)
		}
		hasher.Write([]byte(password))
		hasher.Write(salt)
		block = hasher.Sum(nil)
		hasher.Reset()

		key = append(key, block...)
	}

	return key[:size]
}

func PKCS7Padding(data []byte, blockSize int) []byte {
	padding := blockSize - (len(data) % blockSize)
	padText := bytes.Repeat([]byte{byte(padding)}, padding)
	return append(data, padText...)
}

// Header Generation
func NewRelicTime() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

const requestIDPayload = `{"sc":[147,307]}`

func RequestIDKey(sessionToken string) string {
	return fmt.Sprintf("REQUESTED%sID", sessionToken)
}

// X-Requested-ID for the answer submission
func RequestID(c Encrypter, sessionToken string) (string, error) {
	requestID, err := c.Encrypt(requestIDPayload, RequestIDKey(sessionToken))
	if err != nil {
		return "", fmt.Errorf("failed to generate request id: %w", err)
	}
	return requestID, nil
}
