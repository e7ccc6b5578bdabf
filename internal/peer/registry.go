package peer

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Identity is this agent's own signing keypair plus its advertised name.
type Identity struct {
	Name string
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
}

type identityFile struct {
	Name string `json:"name"`
	Priv string `json:"priv"` // base64 seed (32 bytes)
}

// LoadOrCreateIdentity reads the persisted identity at path, generating and
// writing a fresh Ed25519 keypair on first run (spec.md §4.5, Open Question
// resolved in SPEC_FULL.md: identity is local-only, never rotated automatically).
func LoadOrCreateIdentity(path, name string) (Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		var f identityFile
		if err := json.Unmarshal(data, &f); err != nil {
			return Identity{}, fmt.Errorf("peer: parse identity: %w", err)
		}
		seed, err := decodeBase64(f.Priv)
		if err != nil {
			return Identity{}, fmt.Errorf("peer: decode identity key: %w", err)
		}
		priv := ed25519.NewKeyFromSeed(seed)
		return Identity{Name: f.Name, Priv: priv, Pub: priv.Public().(ed25519.PublicKey)}, nil
	}
	if !os.IsNotExist(err) {
		return Identity{}, fmt.Errorf("peer: read identity: %w", err)
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return Identity{}, fmt.Errorf("peer: generate identity: %w", err)
	}
	f := identityFile{Name: name, Priv: encodeBase64(priv.Seed())}
	out, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return Identity{}, err
	}
	if err := atomicWrite(path, out, 0600); err != nil {
		return Identity{}, err
	}
	return Identity{Name: name, Priv: priv, Pub: pub}, nil
}

// Info describes a known peer agent (spec.md §3 peer registry entry).
type Info struct {
	Name      string `json:"name"`
	PublicKey string `json:"publicKey"` // base64
	LANAddr   string `json:"lanAddr,omitempty"`
	RelayAddr string `json:"relayAddr,omitempty"`

	LastSeenMillis int64 `json:"lastSeen,omitempty"`
	Online         bool  `json:"-"`
}

func (i Info) pubKey() (ed25519.PublicKey, error) {
	b, err := decodeBase64(i.PublicKey)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(b), nil
}

// Registry holds the known peer set, persisted as JSON (spec.md §4.5).
type Registry struct {
	mu    sync.RWMutex
	path  string
	peers map[string]*Info
}

// NewRegistry loads the peer list from path, tolerant of a missing file.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, peers: make(map[string]*Info)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("peer: read registry: %w", err)
	}
	var list []*Info
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("peer: parse registry: %w", err)
	}
	for _, p := range list {
		r.peers[p.Name] = p
	}
	return r, nil
}

// Add registers or updates a peer's advertised addresses and public key.
func (r *Registry) Add(info Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[info.Name] = &info
	return r.saveLocked()
}

// Get returns a known peer by name.
func (r *Registry) Get(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[name]
	if !ok {
		return Info{}, false
	}
	return *p, true
}

// MarkSeen updates LastSeen/Online for a peer after a successful exchange.
func (r *Registry) MarkSeen(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[name]
	if !ok {
		return
	}
	p.LastSeenMillis = at.UnixMilli()
	p.Online = true
	_ = r.saveLocked()
}

// MarkOffline flips a peer's in-memory online flag without touching LastSeen.
func (r *Registry) MarkOffline(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[name]; ok {
		p.Online = false
	}
}

// All returns a snapshot of every known peer.
func (r *Registry) All() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Info, 0, len(r.peers))
	for _, p := range r.peers {
		list = append(list, *p)
	}
	return list
}

func (r *Registry) saveLocked() error {
	list := make([]*Info, 0, len(r.peers))
	for _, p := range r.peers {
		list = append(list, p)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(r.path, data, 0644)
}

func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".beacond-peer-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
