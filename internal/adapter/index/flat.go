package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

var (
	// ErrNotFound is returned by Load when there is no index artifact at
	// the path. Callers degrade to an LLM-only run instead of failing.
	ErrNotFound = errors.New("index file not found")

	// ErrMetadataMismatch is returned when the index vector count and
	// the metadata store count differ. The two artifacts are written
	// together and must stay in sync.
	ErrMetadataMismatch = errors.New("index and metadata counts differ")
)

// Artifact layout: magic "QRIX", version byte, uint32 dimension,
// uint64 count, then count*dimension little-endian float32s in
// insertion order.
var magic = [4]byte{'Q', 'R', 'I', 'X'}

const version = 1

// Flat is an exact nearest-neighbor index over float32 vectors using
// squared L2 distance, the metric the artifacts are built with. Vector
// ids are insertion ordinals. The index is mutated only during the
// offline build; after Load it is read-only.
type Flat struct {
	dim     int
	vectors [][]float32
}

// Result is one search hit. Lower distance is more relevant.
type Result struct {
	ID       uint64
	Distance float64
}

func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

// Add appends a vector and returns its id.
func (f *Flat) Add(vec []float32) (uint64, error) {
	if len(vec) != f.dim {
		return 0, fmt.Errorf("vector dimension mismatch: expected %d, got %d", f.dim, len(vec))
	}
	f.vectors = append(f.vectors, vec)
	return uint64(len(f.vectors) - 1), nil
}

func (f *Flat) Len() int {
	return len(f.vectors)
}

func (f *Flat) Dimension() int {
	return f.dim
}

// Search returns up to k nearest neighbors by squared L2 distance.
// Ties break toward the lower id. Returns fewer than k results when the
// index is smaller than k.
func (f *Flat) Search(query []float32, k int) ([]Result, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", f.dim, len(query))
	}
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}

	results := make([]Result, len(f.vectors))
	for i, vec := range f.vectors {
		results[i] = Result{ID: uint64(i), Distance: l2Squared(query, vec)}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// VerifyCount checks the metadata consistency invariant.
func (f *Flat) VerifyCount(metadataCount int) error {
	if metadataCount != len(f.vectors) {
		return fmt.Errorf("%w: index has %d vectors, metadata has %d records",
			ErrMetadataMismatch, len(f.vectors), metadataCount)
	}
	return nil
}

// Save writes the binary index artifact.
func (f *Flat) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if err := w.WriteByte(version); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(f.dim)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(f.vectors))); err != nil {
		return err
	}
	for _, vec := range f.vectors {
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return file.Sync()
}

// Load reads an index artifact. A missing file is ErrNotFound; anything
// else unreadable is a load error.
func Load(path string) (*Flat, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)

	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, fmt.Errorf("failed to read index header: %w", err)
	}
	if m != magic {
		return nil, fmt.Errorf("not an index file: bad magic %q", m[:])
	}
	v, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read index version: %w", err)
	}
	if v != version {
		return nil, fmt.Errorf("unsupported index version %d", v)
	}

	var dim uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("failed to read index dimension: %w", err)
	}
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read index count: %w", err)
	}
	if dim == 0 {
		return nil, fmt.Errorf("index has zero dimension")
	}

	// Check the claimed count against the file size before trusting it
	// for allocation.
	const headerSize = 4 + 1 + 4 + 8
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat index file: %w", err)
	}
	body := info.Size() - headerSize
	if body < 0 || count > uint64(body)/(uint64(dim)*4) {
		return nil, fmt.Errorf("index file truncated: header claims %d vectors of dimension %d", count, dim)
	}

	f := &Flat{dim: int(dim), vectors: make([][]float32, 0, count)}
	for i := uint64(0); i < count; i++ {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("index file truncated at vector %d: %w", i, err)
		}
		f.vectors = append(f.vectors, vec)
	}

	return f, nil
}

func l2Squared(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
