package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/zalando/go-keyring"
)

const serviceName = "docloader"

// ErrKeyNotFound is returned when no key is stored for a profile
var ErrKeyNotFound = errors.New("no key stored for profile")

// KeyStore persists service-account keys by profile
type KeyStore interface {
	Save(profile string, data []byte) error
	Load(profile string) ([]byte, error)
	Delete(profile string) error
	Name() string
}

// NewKeyStore prefers the system keyring and falls back to encrypted files
// under configDir when no keyring is reachable
func NewKeyStore(configDir string) (KeyStore, error) {
	if keyringAvailable() {
		return NewKeyringStorage(serviceName), nil
	}
	return NewEncryptedFileStorage(configDir)
}

func keyringAvailable() bool {
	testKey := serviceName + "-probe"
	if err := keyring.Set(serviceName, testKey, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(serviceName, testKey)
	return true
}

// KeyringStorage uses the system keyring
type KeyringStorage struct {
	serviceName string
}

// NewKeyringStorage creates a keyring-backed store
func NewKeyringStorage(serviceName string) *KeyringStorage {
	return &KeyringStorage{serviceName: serviceName}
}

func (s *KeyringStorage) Save(profile string, data []byte) error {
	return keyring.Set(s.serviceName, profile, string(data))
}

func (s *KeyringStorage) Load(profile string) ([]byte, error) {
	data, err := keyring.Get(s.serviceName, profile)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, profile)
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (s *KeyringStorage) Delete(profile string) error {
	err := keyring.Delete(s.serviceName, profile)
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, profile)
	}
	return err
}

func (s *KeyringStorage) Name() string {
	return "system-keyring"
}

// EncryptedFileStorage stores keys AES-GCM encrypted under baseDir
type EncryptedFileStorage struct {
	baseDir string
	key     []byte
}

// NewEncryptedFileStorage creates an encrypted file store, generating the
// encryption key on first use
func NewEncryptedFileStorage(baseDir string) (*EncryptedFileStorage, error) {
	key, err := getOrCreateEncryptionKey(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption key: %w", err)
	}
	return &EncryptedFileStorage{baseDir: baseDir, key: key}, nil
}

func (s *EncryptedFileStorage) Save(profile string, data []byte) error {
	encrypted, err := s.encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt key: %w", err)
	}

	keyFile := s.keyFilePath(profile)
	if err := os.MkdirAll(filepath.Dir(keyFile), 0700); err != nil {
		return err
	}
	return os.WriteFile(keyFile, encrypted, 0600)
}

func (s *EncryptedFileStorage) Load(profile string) ([]byte, error) {
	encrypted, err := os.ReadFile(s.keyFilePath(profile))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, profile)
	}
	if err != nil {
		return nil, err
	}
	return s.decrypt(encrypted)
}

func (s *EncryptedFileStorage) Delete(profile string) error {
	err := os.Remove(s.keyFilePath(profile))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, profile)
	}
	return err
}

func (s *EncryptedFileStorage) Name() string {
	return "encrypted-file"
}

func (s *EncryptedFileStorage) keyFilePath(profile string) string {
	return filepath.Join(s.baseDir, "keys", profile+".enc")
}

func (s *EncryptedFileStorage) encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *EncryptedFileStorage) decrypt(ciphertext []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("invalid ciphertext")
	}

	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}
	return plaintext, nil
}

func (s *EncryptedFileStorage) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func getOrCreateEncryptionKey(baseDir string) ([]byte, error) {
	keyFile := filepath.Join(baseDir, ".keyfile")

	if data, err := os.ReadFile(keyFile); err == nil {
		key, err := base64.StdEncoding.DecodeString(string(data))
		if err == nil && len(key) == 32 {
			return key, nil
		}
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyFile, []byte(base64.StdEncoding.EncodeToString(key)), 0600); err != nil {
		return nil, err
	}
	return key, nil
}

// ProfileIndex tracks which profiles have a stored key. The keyring cannot
// enumerate its entries, so the list lives beside the config file.
type ProfileIndex struct {
	path string
}

// NewProfileIndex creates an index stored in configDir
func NewProfileIndex(configDir string) *ProfileIndex {
	return &ProfileIndex{path: filepath.Join(configDir, "profiles.json")}
}

// List returns the known profiles in sorted order
func (p *ProfileIndex) List() ([]string, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var profiles []string
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, err
	}
	sort.Strings(profiles)
	return profiles, nil
}

// Add records profile
func (p *ProfileIndex) Add(profile string) error {
	profiles, err := p.List()
	if err != nil {
		return err
	}
	for _, existing := range profiles {
		if existing == profile {
			return nil
		}
	}
	return p.write(append(profiles, profile))
}

// Remove forgets profile
func (p *ProfileIndex) Remove(profile string) error {
	profiles, err := p.List()
	if err != nil {
		return err
	}
	kept := profiles[:0]
	for _, existing := range profiles {
		if existing != profile {
			kept = append(kept, existing)
		}
	}
	return p.write(kept)
}

func (p *ProfileIndex) write(profiles []string) error {
	sort.Strings(profiles)
	data, err := json.Marshal(profiles)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0600)
}
