package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyFileVersion   = 2
	saltSize         = 32
	derivedKeySize   = 32
	pbkdf2Iterations = 100000

	// PassphraseEnv overrides the generated passphrase file
	PassphraseEnv = "CANVASFETCH_PASSPHRASE"
)

// keyFile is the on-disk layout: one sealed entry per museum. The source
// name is bound to each entry as additional data, so entries cannot be
// swapped between museums.
type keyFile struct {
	Version int                  `json:"version"`
	Salt    string               `json:"salt"`
	Keys    map[string]sealedKey `json:"keys"`
}

type sealedKey struct {
	Sealed   string    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// EncryptedFileStore keeps museum API keys in an AES-GCM sealed file.
// The cipher key is derived from a passphrase with PBKDF2.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

// NewEncryptedFileStore opens the key file at path. The passphrase comes
// from CANVASFETCH_PASSPHRASE, else from a .passphrase file beside the key
// file, generated on first use.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := loadPassphrase(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

func (e *EncryptedFileStore) Store(key *APIKey) error {
	if key == nil || key.Source == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.read()
	if err != nil {
		return err
	}
	aead, err := e.aead(f.Salt)
	if err != nil {
		return err
	}

	modified := key.LastModified
	if modified.IsZero() {
		modified = time.Now()
	}
	sealed, err := seal(aead, key.Source, key.Key)
	if err != nil {
		return err
	}
	f.Keys[key.Source] = sealedKey{Sealed: sealed, Modified: modified}
	return e.write(f)
}

func (e *EncryptedFileStore) Retrieve(source string) (*APIKey, error) {
	if source == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.read()
	if err != nil {
		return nil, err
	}
	entry, ok := f.Keys[source]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return e.unseal(f.Salt, source, entry)
}

// List decrypts every stored key, ordered by source
func (e *EncryptedFileStore) List() ([]*APIKey, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.read()
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(f.Keys))
	for source := range f.Keys {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	keys := make([]*APIKey, 0, len(sources))
	for _, source := range sources {
		key, err := e.unseal(f.Salt, source, f.Keys[source])
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Delete removes the key for source. The file goes away with the last key.
func (e *EncryptedFileStore) Delete(source string) error {
	if source == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.read()
	if err != nil {
		return err
	}
	if _, ok := f.Keys[source]; !ok {
		return ErrCredentialsNotFound
	}
	delete(f.Keys, source)
	return e.write(f)
}

func (e *EncryptedFileStore) Exists(source string) bool {
	key, err := e.Retrieve(source)
	return err == nil && key != nil
}

// read loads the key file; a missing file is an empty one with a fresh salt
func (e *EncryptedFileStore) read() (*keyFile, error) {
	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		return &keyFile{
			Version: keyFileVersion,
			Salt:    base64.StdEncoding.EncodeToString(salt),
			Keys:    make(map[string]sealedKey),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var f keyFile
	if err := json.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("failed to parse key file: %w", err)
	}
	if f.Version != keyFileVersion {
		return nil, fmt.Errorf("unsupported key file version %d", f.Version)
	}
	if f.Keys == nil {
		f.Keys = make(map[string]sealedKey)
	}
	return &f, nil
}

func (e *EncryptedFileStore) write(f *keyFile) error {
	if len(f.Keys) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove key file: %w", err)
		}
		return nil
	}

	content, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode key file: %w", err)
	}

	tempPath := e.path + ".tmp"
	if err := os.WriteFile(tempPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := os.Rename(tempPath, e.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace key file: %w", err)
	}
	return nil
}

func (e *EncryptedFileStore) aead(encodedSalt string) (cipher.AEAD, error) {
	salt, err := base64.StdEncoding.DecodeString(encodedSalt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(e.passphrase), salt, pbkdf2Iterations, derivedKeySize, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (e *EncryptedFileStore) unseal(salt, source string, entry sealedKey) (*APIKey, error) {
	aead, err := e.aead(salt)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(entry.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key for %s: %w", source, err)
	}
	if len(raw) < aead.NonceSize() {
		return nil, errors.New("sealed key too short")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(source))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key for %s: %w", source, err)
	}
	return &APIKey{Source: source, Key: string(plain), LastModified: entry.Modified}, nil
}

func seal(aead cipher.AEAD, source, key string) (string, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(key), []byte(source))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func loadPassphrase(dir string) (string, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return pass, nil
	}

	path := filepath.Join(dir, ".passphrase")
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)
	if err := os.WriteFile(path, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}
