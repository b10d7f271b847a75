// Package cache provides a bbolt-backed persistent cache for fuzzy bytecode matches, so that re-running `cover`
// against the same deployed code does not repeat the O(known bytecodes) fuzzy scan every time.
package cache

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("fuzzy-match")

// BytecodeMatchCache persists deployedBytecode -> matchedKey pairs resolved by sources.Sources.BytecodeToSourceMap,
// batching writes in memory rather than hitting disk on every match.
type BytecodeMatchCache struct {
	db *bbolt.DB

	mu             sync.Mutex
	pending        map[string]string
	flushThreshold int
}

// Open opens (creating if absent) a bbolt database at path and returns a BytecodeMatchCache backed by it.
func Open(path string) (*BytecodeMatchCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening cache database %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &BytecodeMatchCache{db: db, pending: make(map[string]string), flushThreshold: 25}, nil
}

// Get implements sources.FuzzyMatchCache.
func (c *BytecodeMatchCache) Get(deployedBytecode string) (string, bool) {
	c.mu.Lock()
	if matchedKey, ok := c.pending[deployedBytecode]; ok {
		c.mu.Unlock()
		return matchedKey, true
	}
	c.mu.Unlock()

	var matchedKey string
	found := false
	err := c.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketName).Get([]byte(deployedBytecode))
		if value != nil {
			matchedKey = string(value)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false
	}
	return matchedKey, found
}

// Put implements sources.FuzzyMatchCache. Writes are batched and flushed once flushThreshold pending entries have
// accumulated, or on Close.
func (c *BytecodeMatchCache) Put(deployedBytecode string, matchedKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[deployedBytecode] = matchedKey
	if len(c.pending) >= c.flushThreshold {
		_ = c.flushLocked()
	}
}

func (c *BytecodeMatchCache) flushLocked() error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		for key, value := range c.pending {
			if err := bucket.Put([]byte(key), []byte(value)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}
	c.pending = make(map[string]string)
	return nil
}

// Close flushes any pending writes and closes the underlying database.
func (c *BytecodeMatchCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.flushLocked(); err != nil {
		return err
	}
	return c.db.Close()
}
