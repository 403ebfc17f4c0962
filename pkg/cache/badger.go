package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerCache implements Service on an embedded Badger database, for
// single-node runs that must survive restarts without Redis.
type BadgerCache struct {
	db   *badger.DB
	mu   sync.Mutex
	stop chan struct{}
	once sync.Once
}

func NewBadgerCache(opts ...BadgerOption) (*BadgerCache, error) {
	cfg := &BadgerConfig{GCInterval: 10 * time.Minute, GCDiscardRatio: 0.5}
	for _, opt := range opts {
		opt(cfg)
	}

	bopts := badger.DefaultOptions(cfg.Dir)
	if cfg.Dir == "" {
		bopts = bopts.WithInMemory(true)
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	bc := &BadgerCache{db: db, stop: make(chan struct{})}
	if cfg.Dir != "" && cfg.GCInterval > 0 {
		go bc.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return bc, nil
}

func (b *BadgerCache) GetBytes(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BadgerCache) SetBytes(_ context.Context, key string, value []byte, expiration time.Duration) error {
	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if expiration > 0 {
			e = e.WithTTL(expiration)
		}
		return txn.SetEntry(e)
	})
}

func (b *BadgerCache) Delete(_ context.Context, keys ...string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// TryLock is atomic within this process only.
func (b *BadgerCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acquired := false
	err := b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		e := badger.NewEntry([]byte(key), []byte("locked"))
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		acquired = true
		return txn.SetEntry(e)
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

func (b *BadgerCache) Unlock(ctx context.Context, key string) error {
	return b.Delete(ctx, key)
}

func (b *BadgerCache) Close() error {
	b.once.Do(func() { close(b.stop) })
	return b.db.Close()
}

func (b *BadgerCache) runGC(interval time.Duration, ratio float64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when there is nothing to collect.
			for b.db.RunValueLogGC(ratio) == nil {
			}
		}
	}
}
