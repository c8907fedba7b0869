package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"quizrag/internal/domain"
)

var (
	bucketChunks = []byte("chunks")
	bucketInfo   = []byte("info")

	keyModel     = []byte("embedding_model")
	keyDimension = []byte("embedding_dimension")
)

// MetadataStore maps vector ids to chunk records in a bbolt file. The
// offline build writes it alongside the binary index; at inference time
// it is opened read-only in spirit: nothing mutates it.
type MetadataStore struct {
	db *bbolt.DB
}

type chunkRecord struct {
	DocID    string `json:"doc_id"`
	Source   string `json:"source"`
	Domain   string `json:"domain"`
	Position int    `json:"position"`
	Text     string `json:"text"`
}

func NewMetadataStore(path string) (*MetadataStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketChunks, bucketInfo} {
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

	return &MetadataStore{db: db}, nil
}

func idKey(id uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], id)
	return key[:]
}

func (s *MetadataStore) PutChunk(chunk domain.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		rec := chunkRecord{
			DocID:    chunk.DocID,
			Source:   chunk.Source,
			Domain:   chunk.Domain,
			Position: chunk.Position,
			Text:     chunk.Text,
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketChunks).Put(idKey(chunk.ID), data)
	})
}

func (s *MetadataStore) GetChunk(id uint64) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketChunks).Get(idKey(id))
		if data == nil {
			return fmt.Errorf("chunk not found: %d", id)
		}
		var rec chunkRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		chunk = domain.Chunk{
			ID:       id,
			DocID:    rec.DocID,
			Source:   rec.Source,
			Domain:   rec.Domain,
			Position: rec.Position,
			Text:     rec.Text,
		}
		return nil
	})
	return chunk, err
}

// Count returns the number of stored chunk records. The index artifact
// built alongside this store must hold exactly this many vectors.
func (s *MetadataStore) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketChunks).Stats().KeyN
		return nil
	})
	return n, err
}

// SetEmbeddingInfo records which model produced the vectors, so the
// stats command and the online embedder can be cross-checked.
func (s *MetadataStore) SetEmbeddingInfo(model string, dimension int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketInfo)
		if err := b.Put(keyModel, []byte(model)); err != nil {
			return err
		}
		var dim [4]byte
		binary.BigEndian.PutUint32(dim[:], uint32(dimension))
		return b.Put(keyDimension, dim[:])
	})
}

// EmbeddingInfo returns the recorded model name and dimension, empty
// and zero when the store predates the info record.
func (s *MetadataStore) EmbeddingInfo() (model string, dimension int, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketInfo)
		if v := b.Get(keyModel); v != nil {
			model = string(v)
		}
		if v := b.Get(keyDimension); len(v) == 4 {
			dimension = int(binary.BigEndian.Uint32(v))
		}
		return nil
	})
	return model, dimension, err
}

func (s *MetadataStore) Close() error {
	return s.db.Close()
}
