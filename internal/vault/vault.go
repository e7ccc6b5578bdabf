// Package vault is the credential vault adapter (spec.md C3). It stands in
// for an OS keychain on a headless VPS: secrets are fetched by symbolic
// name, cached in memory after first decrypt, and persisted encrypted at
// rest with an atomic rewrite on every change.
package vault

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/beaconhq/beacond/internal/logger"
)

// ErrKeyNotFound is returned by Get when the symbolic name has no entry.
var ErrKeyNotFound = errors.New("vault: key not found")

const filePerm = 0600

type fileFormat struct {
	Salt    string            `json:"salt"`
	Entries map[string]string `json:"entries"`
}

// Vault holds encrypted secrets and an in-memory decrypt cache, keyed by
// symbolic name (e.g. "telegram.bot_token", "peer.bearer_secret").
type Vault struct {
	mu      sync.RWMutex
	key     []byte
	salt    []byte
	path    string
	entries map[string][]byte // symbolic name -> ciphertext
	cache   map[string]string // symbolic name -> decrypted value
}

// Open loads (or creates) the vault file at path, unlocking it with a key
// derived from passphrase.
func Open(path, passphrase string) (*Vault, error) {
	if data, err := os.ReadFile(path); err == nil {
		var f fileFormat
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("vault: parse %s: %w", path, err)
		}
		salt, err := base64.StdEncoding.DecodeString(f.Salt)
		if err != nil {
			return nil, fmt.Errorf("vault: decode salt: %w", err)
		}
		v := &Vault{
			key:     deriveKey(passphrase, salt),
			salt:    salt,
			path:    path,
			entries: make(map[string][]byte, len(f.Entries)),
			cache:   make(map[string]string),
		}
		for name, encoded := range f.Entries {
			ct, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("vault: decode entry %q: %w", name, err)
			}
			v.entries[name] = ct
		}
		logger.InfoCF("vault", "vault opened", map[string]interface{}{"path": path, "entries": len(v.entries)})
		return v, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("vault: read %s: %w", path, err)
	}

	salt, err := generateSalt()
	if err != nil {
		return nil, err
	}
	v := &Vault{
		key:     deriveKey(passphrase, salt),
		salt:    salt,
		path:    path,
		entries: make(map[string][]byte),
		cache:   make(map[string]string),
	}
	if err := v.persist(); err != nil {
		return nil, fmt.Errorf("vault: create %s: %w", path, err)
	}
	logger.InfoCF("vault", "vault created", map[string]interface{}{"path": path})
	return v, nil
}

// Get fetches a secret by symbolic name, decrypting (and caching) on first
// access per process lifetime.
func (v *Vault) Get(name string) (string, error) {
	v.mu.RLock()
	if cached, ok := v.cache[name]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	ciphertext, ok := v.entries[name]
	v.mu.RUnlock()
	if !ok {
		return "", ErrKeyNotFound
	}

	plaintext, err := decrypt(v.key, ciphertext)
	if err != nil {
		return "", fmt.Errorf("vault: get %q: %w", name, err)
	}

	v.mu.Lock()
	v.cache[name] = string(plaintext)
	v.mu.Unlock()
	return string(plaintext), nil
}

// Set stores (or replaces) a secret under a symbolic name and persists
// atomically.
func (v *Vault) Set(name, value string) error {
	ciphertext, err := encrypt(v.key, []byte(value))
	if err != nil {
		return fmt.Errorf("vault: set %q: %w", name, err)
	}

	v.mu.Lock()
	prevCT, hadCT := v.entries[name]
	prevCache, hadCache := v.cache[name]
	v.entries[name] = ciphertext
	v.cache[name] = value
	err = v.persist()
	if err != nil {
		if hadCT {
			v.entries[name] = prevCT
		} else {
			delete(v.entries, name)
		}
		if hadCache {
			v.cache[name] = prevCache
		} else {
			delete(v.cache, name)
		}
	}
	v.mu.Unlock()

	if err != nil {
		return fmt.Errorf("vault: set %q: %w", name, err)
	}
	logger.InfoCF("vault", "secret stored", map[string]interface{}{"name": name})
	return nil
}

// List returns the sorted symbolic names currently stored (no decryption).
func (v *Vault) List() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.entries))
	for name := range v.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// persist must be called with v.mu held.
func (v *Vault) persist() error {
	f := fileFormat{
		Salt:    base64.StdEncoding.EncodeToString(v.salt),
		Entries: make(map[string]string, len(v.entries)),
	}
	for name, ct := range v.entries {
		f.Entries[name] = base64.StdEncoding.EncodeToString(ct)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(v.path, data, filePerm)
}

// atomicWrite writes data to path via temp-file-then-rename so a crash
// mid-write never leaves a truncated vault file on disk.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("atomic write: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".beacond-vault-*")
	if err != nil {
		return fmt.Errorf("atomic write: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("atomic write: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomic write: close: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("atomic write: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic write: rename: %w", err)
	}
	success = true
	return nil
}
