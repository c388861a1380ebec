// Package dlindex implements C6: a crash-safe content-addressed index of
// payload download state, backed by go.etcd.io/bbolt. Bucket/transaction
// idioms are grounded on Will-Luck-Docker-Sentinel's internal/store.Store
// (bolt.Open with a bucket-creation pass, db.Update/db.View closures per
// operation), adapted from container-update bookkeeping to download
// fingerprints.
package dlindex

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/loonghao/msvc-kit/src/internal/kiterrors"
)

// Status is a download's lifecycle state, keyed by payload fingerprint.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusInFlight Status = "IN_FLIGHT"
	StatusDone     Status = "DONE"
	StatusFailed   Status = "FAILED"
)

// Entry is the persisted record for one fingerprint.
type Entry struct {
	Fingerprint string    `json:"fingerprint"`
	URL         string    `json:"url"`
	LocalPath   string    `json:"local_path"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256,omitempty"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var bucketEntries = []byte("entries")

// Index is the bbolt-backed download ledger for one install root.
type Index struct {
	db *bolt.DB

	mu    sync.Mutex
	conds map[string]*sync.Cond
}

// Open opens (creating if absent) the index database at path, recovering
// any crash-interrupted downloads by resetting IN_FLIGHT entries back to
// PENDING (spec.md §4.6: a crash must never strand an entry as
// permanently in-flight).
func Open(path string) (*Index, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, kiterrors.Wrap(kiterrors.Io, "open download index", err)
	}

	idx := &Index{db: db, conds: make(map[string]*sync.Cond)}

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketEntries)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil // tolerate a corrupt single record rather than failing Open
			}
			if e.Status == StatusInFlight {
				e.Status = StatusPending
				e.Error = "recovered after interruption"
				e.UpdatedAt = time.Now().UTC()
				raw, err := json.Marshal(e)
				if err != nil {
					return err
				}
				return b.Put(k, raw)
			}
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, kiterrors.Wrap(kiterrors.Io, "recover download index", err)
	}

	return idx, nil
}

// Close closes the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Lookup returns the entry for fingerprint, ok=false if none exists.
func (idx *Index) Lookup(fingerprint string) (Entry, bool, error) {
	var e Entry
	var ok bool
	err := idx.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketEntries).Get([]byte(fingerprint))
		if raw == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(raw, &e)
	})
	if err != nil {
		return Entry{}, false, kiterrors.Wrap(kiterrors.Io, "lookup download entry", err)
	}
	return e, ok, nil
}

// List returns every entry currently recorded, for inspection tooling.
func (idx *Index) List() ([]Entry, error) {
	var out []Entry
	err := idx.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, kiterrors.Wrap(kiterrors.Io, "list download entries", err)
	}
	return out, nil
}

// BeginDownload atomically claims fingerprint for downloading. A missing,
// PENDING or FAILED entry is claimed (set IN_FLIGHT, claimed=true); a DONE
// entry is returned with claimed=false. If another goroutine holds it
// IN_FLIGHT, BeginDownload blocks (via a per-fingerprint sync.Cond) until
// its state changes and then checks again: DONE returns claimed=false,
// FAILED is claimed by the waiter.
func (idx *Index) BeginDownload(fingerprint, url string) (entry Entry, claimed bool, err error) {
	idx.mu.Lock()
	cond, exists := idx.conds[fingerprint]
	if !exists {
		cond = sync.NewCond(&idx.mu)
		idx.conds[fingerprint] = cond
	}
	for {
		e, ok, lookupErr := idx.lookupLocked(fingerprint)
		if lookupErr != nil {
			idx.mu.Unlock()
			return Entry{}, false, lookupErr
		}
		if !ok || e.Status == StatusPending || e.Status == StatusFailed {
			now := time.Now().UTC()
			e = Entry{Fingerprint: fingerprint, URL: url, Status: StatusInFlight, UpdatedAt: now}
			if putErr := idx.putLocked(e); putErr != nil {
				idx.mu.Unlock()
				return Entry{}, false, putErr
			}
			idx.mu.Unlock()
			return e, true, nil
		}
		if e.Status == StatusDone || e.Status == StatusFailed {
			idx.mu.Unlock()
			return e, false, nil
		}
		// Another goroutine holds it IN_FLIGHT; wait for a state change.
		cond.Wait()
	}
}

func (idx *Index) lookupLocked(fingerprint string) (Entry, bool, error) {
	var e Entry
	var ok bool
	err := idx.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketEntries).Get([]byte(fingerprint))
		if raw == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(raw, &e)
	})
	return e, ok, err
}

func (idx *Index) putLocked(e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(e.Fingerprint), raw)
	})
}

// CommitDone records a successful download and wakes any goroutine
// blocked in BeginDownload for the same fingerprint.
func (idx *Index) CommitDone(fingerprint, localPath string, size int64, sha256Hex string) error {
	return idx.commit(fingerprint, func(e *Entry) {
		e.Status = StatusDone
		e.LocalPath = localPath
		e.Size = size
		e.SHA256 = sha256Hex
		e.Error = ""
	})
}

// CommitFailed records a failed attempt for fingerprint; a later
// BeginDownload reclaims the entry.
func (idx *Index) CommitFailed(fingerprint string, cause error) error {
	return idx.commit(fingerprint, func(e *Entry) {
		e.Status = StatusFailed
		if cause != nil {
			e.Error = cause.Error()
		}
	})
}

func (idx *Index) commit(fingerprint string, mutate func(*Entry)) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok, err := idx.lookupLocked(fingerprint)
	if err != nil {
		return err
	}
	if !ok {
		e = Entry{Fingerprint: fingerprint}
	}
	mutate(&e)
	e.UpdatedAt = time.Now().UTC()
	if err := idx.putLocked(e); err != nil {
		return kiterrors.Wrap(kiterrors.Io, fmt.Sprintf("commit download entry %s", fingerprint), err)
	}
	if cond, exists := idx.conds[fingerprint]; exists {
		cond.Broadcast()
	}
	return nil
}
