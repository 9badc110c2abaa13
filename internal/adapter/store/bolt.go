package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.etcd.io/bbolt"

	"passage/internal/domain"
	"passage/internal/port"
)

var (
	bucketMeta     = []byte("meta")
	bucketPassages = []byte("passages")
	bucketMatrices = []byte("matrices")
	bucketActive   = []byte("active")
)

// BoltStore is the document-database-backed persistence variant. It honors
// the same contract as FSStore, keying every record by tenant and index
// name inside a single bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the bbolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketPassages, bucketMatrices, bucketActive} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
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

func indexKey(tenantID, name string) []byte {
	return []byte(tenantID + "|" + name)
}

func passageKey(tenantID, name string, row int) []byte {
	return []byte(fmt.Sprintf("%s|%s|%08d", tenantID, name, row))
}

func (s *BoltStore) SaveIndex(meta domain.IndexMeta, passages []domain.Passage, vectors [][]float32) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketMeta).Put(indexKey(meta.TenantID, meta.Name), data); err != nil {
			return err
		}

		pb := tx.Bucket(bucketPassages)
		for i, p := range passages {
			rec, err := json.Marshal(p)
			if err != nil {
				return err
			}
			if err := pb.Put(passageKey(meta.TenantID, meta.Name, i), rec); err != nil {
				return err
			}
		}

		if len(vectors) > 0 {
			if err := tx.Bucket(bucketMatrices).Put(indexKey(meta.TenantID, meta.Name), encodeMatrix(vectors)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) LoadMeta(tenantID, name string) (domain.IndexMeta, error) {
	var meta domain.IndexMeta
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(indexKey(tenantID, name))
		if data == nil {
			return port.ErrIndexNotFound
		}
		return json.Unmarshal(data, &meta)
	})
	return meta, err
}

func (s *BoltStore) LoadPassages(tenantID, name string) ([]domain.Passage, error) {
	var passages []domain.Passage
	prefix := []byte(tenantID + "|" + name + "|")
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketPassages).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var p domain.Passage
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("corrupt passage record %s: %w", k, err)
			}
			passages = append(passages, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if passages == nil {
		// Distinguish an absent index from an empty one via metadata.
		if _, err := s.LoadMeta(tenantID, name); err != nil {
			return nil, err
		}
	}
	return passages, nil
}

func (s *BoltStore) LoadPassage(tenantID, name string, row int) (domain.Passage, error) {
	var p domain.Passage
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPassages).Get(passageKey(tenantID, name, row))
		if data == nil {
			return fmt.Errorf("passage row %d out of range", row)
		}
		return json.Unmarshal(data, &p)
	})
	return p, err
}

func (s *BoltStore) OpenMatrix(tenantID, name string) (port.Matrix, error) {
	meta, err := s.LoadMeta(tenantID, name)
	if err != nil {
		return nil, err
	}
	if !meta.HasEmbeddings || meta.PassageCount == 0 || meta.Dimension <= 0 {
		return nil, port.ErrNoMatrix
	}

	var blob []byte
	err = s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMatrices).Get(indexKey(tenantID, name))
		if data != nil {
			blob = make([]byte, len(data))
			copy(blob, data)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(blob) != meta.PassageCount*meta.Dimension*4 {
		return nil, port.ErrNoMatrix
	}

	data := make([]float32, meta.PassageCount*meta.Dimension)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return &MemMatrix{rows: meta.PassageCount, dim: meta.Dimension, data: data}, nil
}

func (s *BoltStore) ListIndices(tenantID string) ([]domain.IndexMeta, error) {
	var metas []domain.IndexMeta
	prefix := []byte(tenantID + "|")
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketMeta).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var meta domain.IndexMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				continue
			}
			metas = append(metas, meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.Before(metas[j].CreatedAt)
	})
	return metas, nil
}

func (s *BoltStore) ListTenants() ([]string, error) {
	seen := make(map[string]struct{})
	var tenants []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).ForEach(func(k, v []byte) error {
			parts := strings.SplitN(string(k), "|", 2)
			if len(parts) != 2 {
				return nil
			}
			if _, ok := seen[parts[0]]; !ok {
				seen[parts[0]] = struct{}{}
				tenants = append(tenants, parts[0])
			}
			return nil
		})
	})
	return tenants, err
}

func (s *BoltStore) ActiveName(tenantID string) (string, error) {
	var name string
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketActive).Get([]byte(tenantID))
		name = string(data)
		return nil
	})
	return name, err
}

func (s *BoltStore) SetActive(tenantID, name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if name == "" {
			return tx.Bucket(bucketActive).Delete([]byte(tenantID))
		}
		return tx.Bucket(bucketActive).Put([]byte(tenantID), []byte(name))
	})
}

func (s *BoltStore) DeleteIndex(tenantID, name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		key := indexKey(tenantID, name)
		if tx.Bucket(bucketMeta).Get(key) == nil {
			return port.ErrIndexNotFound
		}
		if err := tx.Bucket(bucketMeta).Delete(key); err != nil {
			return err
		}
		if err := tx.Bucket(bucketMatrices).Delete(key); err != nil {
			return err
		}

		prefix := []byte(tenantID + "|" + name + "|")
		c := tx.Bucket(bucketPassages).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
