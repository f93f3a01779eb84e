package custody

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// sealer encrypts account key material before it is written to the kv
// mount. Vault encrypts its storage already; sealing keeps the raw keys
// opaque to anyone holding a read token for the mount but not the service
// config.
type sealer struct {
	key []byte
}

func newSealer(key string) (*sealer, error) {
	if key == "" {
		return nil, nil
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("newSealer: cipher key must be 32 bytes, got %d", len(key))
	}
	return &sealer{key: []byte(key)}, nil
}

func (s *sealer) seal(plain string) (string, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", fmt.Errorf("seal: could not create cipher: %w", err)
	}
	ciphertext := make([]byte, aes.BlockSize+len(plain))
	iv := ciphertext[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("seal: could not read iv: %w", err)
	}
	cfb := cipher.NewCFBEncrypter(block, iv)
	cfb.XORKeyStream(ciphertext[aes.BlockSize:], []byte(plain))
	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func (s *sealer) open(sealed string) (string, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("open: error decoding base64: %w", err)
	}
	if len(ciphertext) < aes.BlockSize {
		return "", fmt.Errorf("open: ciphertext too short")
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", fmt.Errorf("open: could not create cipher: %w", err)
	}
	iv := ciphertext[:aes.BlockSize]
	ciphertext = ciphertext[aes.BlockSize:]
	cfb := cipher.NewCFBDecrypter(block, iv)
	cfb.XORKeyStream(ciphertext, ciphertext)
	return string(ciphertext), nil
}
