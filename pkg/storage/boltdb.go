package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/envgate/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketEnvironments = []byte("environments")
	bucketConfigRepos  = []byte("config_repos")
	bucketPipelines    = []byte("pipelines")
	bucketAgents       = []byte("agents")
	bucketMeta         = []byte("meta")

	keyConfigHash = []byte("config_hash")
)

// configBuckets are rewritten together by SaveConfig
var configBuckets = [][]byte{bucketEnvironments, bucketConfigRepos, bucketPipelines}

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "envgate.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketEnvironments,
			bucketConfigRepos,
			bucketPipelines,
			bucketAgents,
			bucketMeta,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveConfig replaces the stored configuration in a single transaction.
// Readers observe either the previous or the new record.
func (s *BoltStore) SaveConfig(record *ConfigRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range configBuckets {
			if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
				return fmt.Errorf("failed to clear bucket %s: %w", name, err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}

		envs := tx.Bucket(bucketEnvironments)
		for _, env := range record.Environments {
			data, err := json.Marshal(env)
			if err != nil {
				return err
			}
			if err := envs.Put([]byte(types.NameKey(env.Name)), data); err != nil {
				return err
			}
		}

		repos := tx.Bucket(bucketConfigRepos)
		for _, repo := range record.ConfigRepos {
			data, err := json.Marshal(repo)
			if err != nil {
				return err
			}
			if err := repos.Put([]byte(repo.ID), data); err != nil {
				return err
			}
		}

		pipelines := tx.Bucket(bucketPipelines)
		for _, name := range record.Pipelines {
			if err := pipelines.Put([]byte(types.NameKey(name)), []byte(name)); err != nil {
				return err
			}
		}

		return tx.Bucket(bucketMeta).Put(keyConfigHash, []byte(record.Hash))
	})
}

// LoadConfig returns the stored configuration, or ErrNotFound if none was
// ever saved
func (s *BoltStore) LoadConfig() (*ConfigRecord, error) {
	record := &ConfigRecord{}
	err := s.db.View(func(tx *bolt.Tx) error {
		hash := tx.Bucket(bucketMeta).Get(keyConfigHash)
		if hash == nil {
			return fmt.Errorf("config %w", ErrNotFound)
		}
		record.Hash = string(hash)

		if err := tx.Bucket(bucketEnvironments).ForEach(func(k, v []byte) error {
			var env types.Environment
			if err := json.Unmarshal(v, &env); err != nil {
				return err
			}
			record.Environments = append(record.Environments, &env)
			return nil
		}); err != nil {
			return err
		}

		if err := tx.Bucket(bucketConfigRepos).ForEach(func(k, v []byte) error {
			var repo ConfigRepoRecord
			if err := json.Unmarshal(v, &repo); err != nil {
				return err
			}
			record.ConfigRepos = append(record.ConfigRepos, &repo)
			return nil
		}); err != nil {
			return err
		}

		return tx.Bucket(bucketPipelines).ForEach(func(k, v []byte) error {
			record.Pipelines = append(record.Pipelines, string(v))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Agent operations
func (s *BoltStore) CreateAgent(agent *types.Agent) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgents)
		data, err := json.Marshal(agent)
		if err != nil {
			return err
		}
		return b.Put([]byte(agent.ID), data)
	})
}

func (s *BoltStore) GetAgent(id string) (*types.Agent, error) {
	var agent types.Agent
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgents)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("agent %s %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &agent)
	})
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (s *BoltStore) ListAgents() ([]*types.Agent, error) {
	var agents []*types.Agent
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgents)
		return b.ForEach(func(k, v []byte) error {
			var agent types.Agent
			if err := json.Unmarshal(v, &agent); err != nil {
				return err
			}
			agents = append(agents, &agent)
			return nil
		})
	})
	return agents, err
}

func (s *BoltStore) UpdateAgent(agent *types.Agent) error {
	return s.CreateAgent(agent) // Same as create (upsert)
}

func (s *BoltStore) DeleteAgent(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgents)
		return b.Delete([]byte(id))
	})
}
