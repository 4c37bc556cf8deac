// Package secrets keeps backend tokens (e.g. the IBM Quantum token sent with
// compile requests) in a per-user file, 0600, sealed with AES-GCM.
// It keeps tokens out of config.toml; it is not an OS keychain.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const fileName = "tokens.json"

// ErrNoToken is returned when no token is stored under a name.
var ErrNoToken = errors.New("token not found")

type tokenFile struct {
	Tokens map[string]string `json:"tokens"` // name -> base64(nonce|ciphertext)
}

// StoreToken seals token under name, replacing any earlier value.
func StoreToken(name, token string) error {
	if name = norm(name); name == "" {
		return fmt.Errorf("token name required")
	}
	path, err := filePath()
	if err != nil {
		return err
	}
	tf, err := load(path)
	if err != nil {
		return err
	}
	sealed, err := seal([]byte(token))
	if err != nil {
		return err
	}
	tf.Tokens[name] = base64.StdEncoding.EncodeToString(sealed)
	return save(path, tf)
}

// FetchToken returns the token stored under name or ErrNoToken.
func FetchToken(name string) (string, error) {
	if name = norm(name); name == "" {
		return "", fmt.Errorf("token name required")
	}
	path, err := filePath()
	if err != nil {
		return "", err
	}
	tf, err := load(path)
	if err != nil {
		return "", err
	}
	enc, ok := tf.Tokens[name]
	if !ok {
		return "", ErrNoToken
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("decode token %s: %w", name, err)
	}
	plain, err := open(raw)
	if err != nil {
		return "", fmt.Errorf("open token %s: %w", name, err)
	}
	return string(plain), nil
}

// DeleteToken removes name; deleting a missing token is not an error.
func DeleteToken(name string) error {
	if name = norm(name); name == "" {
		return fmt.Errorf("token name required")
	}
	path, err := filePath()
	if err != nil {
		return err
	}
	tf, err := load(path)
	if err != nil {
		return err
	}
	if _, ok := tf.Tokens[name]; !ok {
		return nil
	}
	delete(tf.Tokens, name)
	return save(path, tf)
}

func filePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "qbp")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

func load(path string) (tokenFile, error) {
	tf := tokenFile{Tokens: map[string]string{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tf, nil
		}
		return tf, err
	}
	if err := json.Unmarshal(data, &tf); err != nil {
		return tf, fmt.Errorf("parse %s: %w", path, err)
	}
	if tf.Tokens == nil {
		tf.Tokens = map[string]string{}
	}
	return tf, nil
}

func save(path string, tf tokenFile) error {
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func norm(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func gcm() (cipher.AEAD, error) {
	sum := sha256.Sum256([]byte(fmt.Sprintf("qbp-%s-%s", runtime.GOOS, os.Getenv("USER"))))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func seal(plain []byte) ([]byte, error) {
	aead, err := gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

func open(sealed []byte) ([]byte, error) {
	aead, err := gcm()
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, body := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, body, nil)
}
