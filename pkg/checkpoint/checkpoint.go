package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"recipecards/pkg/logger"
)

// FileName is the checkpoint database created inside the save directory
const FileName = ".checkpoint.db"

const currentVersion = 1

var bucketCheckpoints = []byte("checkpoints")

// Checkpoint records how far a crawl got so it can be resumed
type Checkpoint struct {
	Key        string    `json:"key"`
	Query      string    `json:"query"`
	NextOffset int       `json:"next_offset"`
	Total      int       `json:"total"`
	Pages      int       `json:"pages"`
	Saved      int       `json:"saved"`
	Existing   int       `json:"existing"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int       `json:"version"`
}

// Manager handles checkpoint operations
type Manager struct {
	db     *bolt.DB
	path   string
	logger logger.Logger
}

// Open opens (or creates) the checkpoint database in dir.
func Open(dir string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCheckpoints)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create checkpoint bucket: %w", err)
	}

	return &Manager{db: db, path: path, logger: log.WithField("component", "checkpoint")}, nil
}

// Path returns the database file location
func (m *Manager) Path() string {
	return m.path
}

// Close releases the database
func (m *Manager) Close() error {
	return m.db.Close()
}

// Load returns the checkpoint stored under key, or nil if there is none
func (m *Manager) Load(key string) (*Checkpoint, error) {
	var data []byte
	err := m.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketCheckpoints).Get([]byte(key)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"key":         cp.Key,
		"next_offset": cp.NextOffset,
		"pages":       cp.Pages,
		"saved":       cp.Saved,
		"updated_at":  cp.UpdatedAt,
	})
	return &cp, nil
}

// Save stores the checkpoint under its key
func (m *Manager) Save(cp *Checkpoint) error {
	if cp.Key == "" {
		return fmt.Errorf("checkpoint key is empty")
	}
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	cp.Version = currentVersion

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	err = m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCheckpoints).Put([]byte(cp.Key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"key":         cp.Key,
		"next_offset": cp.NextOffset,
	})
	return nil
}

// Delete removes the checkpoint stored under key
func (m *Manager) Delete(key string) error {
	err := m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCheckpoints).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Exists reports whether a checkpoint is stored under key
func (m *Manager) Exists(key string) bool {
	found := false
	_ = m.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketCheckpoints).Get([]byte(key)) != nil
		return nil
	})
	return found
}

// Keys lists every stored checkpoint key
func (m *Manager) Keys() ([]string, error) {
	var keys []string
	err := m.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCheckpoints).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return keys, nil
}
