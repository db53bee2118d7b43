// Package cache persists identity tokens between process restarts.
//
// Each cloud profile gets one JSON file holding {token, expires_at}, where
// expires_at is a Unix timestamp in seconds. Files are replaced atomically
// so concurrent writers never leave a torn file behind; the last writer wins.
package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TokenEntry is the persisted form of a bearer token.
type TokenEntry struct {
	Token     string  `json:"token"`
	ExpiresAt float64 `json:"expires_at"`
}

// NewTokenEntry builds an entry from a token value and its expiry.
func NewTokenEntry(token string, expiresAt time.Time) TokenEntry {
	return TokenEntry{
		Token:     token,
		ExpiresAt: float64(expiresAt.UnixNano()) / float64(time.Second),
	}
}

// Expiry returns ExpiresAt as a time.Time.
func (e TokenEntry) Expiry() time.Time {
	sec, frac := math.Modf(e.ExpiresAt)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// ValidAt reports whether the token is usable at now, keeping skew in reserve.
func (e TokenEntry) ValidAt(now time.Time, skew time.Duration) bool {
	if e.Token == "" || e.ExpiresAt <= 0 {
		return false
	}
	return now.Add(skew).Before(e.Expiry())
}

// TokenStore is a file-backed token cache.
type TokenStore struct {
	dir string
}

// New returns a token store rooted at dir.
func New(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

// NewDefault returns a token store rooted at the OS user cache dir.
func NewDefault() *TokenStore {
	return &TokenStore{dir: DefaultDir()}
}

// Dir returns the directory the store writes to.
func (s *TokenStore) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Load returns the cached entry for key. ok is false when nothing usable is
// stored; a corrupt file is treated as absent.
func (s *TokenStore) Load(key string) (TokenEntry, bool, error) {
	if s == nil || s.dir == "" {
		return TokenEntry{}, false, nil
	}

	data, err := os.ReadFile(s.pathForKey(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return TokenEntry{}, false, nil
		}
		return TokenEntry{}, false, err
	}

	var entry TokenEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return TokenEntry{}, false, nil
	}
	if entry.Token == "" {
		return TokenEntry{}, false, nil
	}

	return entry, true, nil
}

// Save stores entry under key.
func (s *TokenStore) Save(key string, entry TokenEntry) error {
	if s == nil || s.dir == "" {
		return nil
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, sanitizeKey(key)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, s.pathForKey(key))
}

// Invalidate removes a single cached entry.
func (s *TokenStore) Invalidate(key string) error {
	if s == nil || s.dir == "" {
		return nil
	}

	err := os.Remove(s.pathForKey(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *TokenStore) pathForKey(key string) string {
	return filepath.Join(s.dir, "token-"+sanitizeKey(key)+".json")
}

// DefaultDir returns <user cache dir>/stackgate.
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "stackgate")
}

func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "default"
	}

	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		ch := key[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '-' || ch == '_' {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
