package kvdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/meghashyamc/contextview/config"
	"github.com/meghashyamc/contextview/logger"
	bolt "go.etcd.io/bbolt"
)

type BoltDB struct {
	store      *bolt.DB
	logger     logger.Logger
	now        func() time.Time
	maxEntries int
}

const (
	searchesBucket    = "searches"
	defaultMaxEntries = 200
)

func New(logger logger.Logger, cfg *config.Config) (*BoltDB, error) {
	kvDBPath := cfg.GetKVDBPath()
	if kvDBPath == "" {
		return nil, errors.New("no key-value database path configured")
	}
	if err := os.MkdirAll(filepath.Dir(kvDBPath), 0755); err != nil {
		logger.Error("failed to create key-value database directory", "err", err.Error(), "path", kvDBPath)
		return nil, fmt.Errorf("failed to create key-value database directory: %w", err)
	}

	store, err := bolt.Open(kvDBPath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		logger.Error("failed to open database", "err", err.Error(), "path", kvDBPath)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	boltDB := &BoltDB{
		store:      store,
		logger:     logger,
		now:        time.Now,
		maxEntries: defaultMaxEntries,
	}

	if err := boltDB.initBucket(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize bucket: %w", err)
	}

	return boltDB, nil
}

func (b *BoltDB) initBucket() error {
	return b.store.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(searchesBucket))
		if err != nil {
			b.logger.Error("failed to create bucket", "err", err.Error())
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
}

func historyKey(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// RecordSearch bumps the count for query and stamps it as the most recent search. The oldest entries are pruned
// once the history holds more than maxEntries queries.
func (b *BoltDB) RecordSearch(query string, resultCount int) error {
	key := historyKey(query)
	if key == "" {
		b.logger.Error("key cannot be empty", "query", query)
		return &InvalidKeyError{
			Key:    query,
			Reason: "query cannot be empty",
		}
	}

	return b.store.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(searchesBucket))
		if bucket == nil {
			b.logger.Error("bucket not found", "bucket", searchesBucket)
			return fmt.Errorf("bucket not found")
		}

		record := SearchRecord{Query: strings.TrimSpace(query)}
		if existing := bucket.Get([]byte(key)); existing != nil {
			if err := json.Unmarshal(existing, &record); err != nil {
				b.logger.Warn("overwriting unreadable history entry", "key", key, "err", err.Error())
				record = SearchRecord{Query: strings.TrimSpace(query)}
			}
		}
		record.Count++
		record.ResultCount = resultCount
		record.LastSearched = b.now().UTC()

		value, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to encode history entry: %w", err)
		}
		if err := bucket.Put([]byte(key), value); err != nil {
			b.logger.Error("failed to set key", "key", key, "err", err.Error())
			return fmt.Errorf("failed to set key %s: %w", key, err)
		}

		return b.prune(bucket)
	})
}

func (b *BoltDB) prune(bucket *bolt.Bucket) error {
	type keyed struct {
		key  []byte
		when time.Time
	}
	var entries []keyed
	err := bucket.ForEach(func(k, v []byte) error {
		var record SearchRecord
		if err := json.Unmarshal(v, &record); err != nil {
			b.logger.Warn("dropping unreadable history entry", "key", string(k), "err", err.Error())
		}
		entries = append(entries, keyed{key: append([]byte(nil), k...), when: record.LastSearched})
		return nil
	})
	if err != nil {
		return err
	}
	if len(entries) <= b.maxEntries {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].when.Before(entries[j].when) })
	for _, entry := range entries[:len(entries)-b.maxEntries] {
		if err := bucket.Delete(entry.key); err != nil {
			return fmt.Errorf("failed to prune key %s: %w", entry.key, err)
		}
	}
	return nil
}

func (b *BoltDB) GetSearch(query string) (SearchRecord, error) {
	key := historyKey(query)
	if key == "" {
		b.logger.Error("key cannot be empty", "query", query)
		return SearchRecord{}, &InvalidKeyError{
			Key:    query,
			Reason: "query cannot be empty",
		}
	}

	var record SearchRecord
	err := b.store.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(searchesBucket))
		if bucket == nil {
			b.logger.Error("bucket not found", "bucket", searchesBucket)
			return fmt.Errorf("bucket not found")
		}

		v := bucket.Get([]byte(key))
		if v == nil {
			return &NotFoundError{Key: key}
		}
		return json.Unmarshal(v, &record)
	})
	if err != nil {
		var notFoundErr *NotFoundError
		if errors.As(err, &notFoundErr) {
			b.logger.Debug("no search history entry", "key", key)
		}
		return SearchRecord{}, err
	}

	return record, nil
}

// RecentSearches returns up to limit entries, most recent first. A limit <= 0 returns everything.
func (b *BoltDB) RecentSearches(limit int) ([]SearchRecord, error) {
	records := []SearchRecord{}
	err := b.store.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(searchesBucket))
		if bucket == nil {
			b.logger.Error("bucket not found", "bucket", searchesBucket)
			return fmt.Errorf("bucket not found")
		}

		return bucket.ForEach(func(k, v []byte) error {
			var record SearchRecord
			if err := json.Unmarshal(v, &record); err != nil {
				b.logger.Warn("skipping unreadable history entry", "key", string(k), "err", err.Error())
				return nil
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].LastSearched.After(records[j].LastSearched)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (b *BoltDB) DeleteSearch(query string) error {
	key := historyKey(query)
	if key == "" {
		b.logger.Error("key cannot be empty", "query", query)
		return &InvalidKeyError{
			Key:    query,
			Reason: "query cannot be empty",
		}
	}

	return b.store.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(searchesBucket))
		if bucket == nil {
			b.logger.Error("bucket not found", "bucket", searchesBucket)
			return fmt.Errorf("bucket not found")
		}

		if bucket.Get([]byte(key)) == nil {
			return &NotFoundError{Key: key}
		}

		if err := bucket.Delete([]byte(key)); err != nil {
			b.logger.Error("failed to delete key", "key", key, "err", err.Error())
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}

		return nil
	})
}

func (b *BoltDB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
