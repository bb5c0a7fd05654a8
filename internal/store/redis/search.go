package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/rueidis"
)

// VectorIndex describes an FT HNSW index over hash keys.
type VectorIndex struct {
	Name        string
	Prefix      string
	Dimensions  int
	M           int
	EFConstruct int
}

// EnsureIndex creates the vector index if it does not already exist.
func (s *Store) EnsureIndex(ctx context.Context, idx VectorIndex) error {
	if idx.Name == "" {
		return fmt.Errorf("index name is required")
	}
	if idx.Dimensions <= 0 {
		return fmt.Errorf("vector DIM must be positive")
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(idx.Dimensions),
		"DISTANCE_METRIC", "COSINE",
	}
	if idx.M > 0 {
		attrs = append(attrs, "M", strconv.Itoa(idx.M))
	}
	if idx.EFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(idx.EFConstruct))
	}

	args := []string{
		idx.Name,
		"ON", "HASH",
		"PREFIX", "1", idx.Prefix,
		"SCHEMA",
		"doc_id", "TAG",
		"chunk_index", "NUMERIC",
		"vector", "VECTOR", "HNSW", strconv.Itoa(len(attrs)),
	}
	args = append(args, attrs...)

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return fmt.Errorf("create index %s: %w", idx.Name, err)
	}
	return nil
}

// SearchEntry is one FT.SEARCH hit: the hash key, its returned fields, and
// the similarity score in [0, 1].
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// SearchKNN runs a KNN vector similarity search via FT.SEARCH. The cosine
// distance reported by Redis is converted to a similarity clamped to [0, 1].
func (s *Store) SearchKNN(
	ctx context.Context, index string, vector []float32, k int, returnFields []string,
) ([]SearchEntry, error) {
	if index == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @vector $BLOB]", k)
	args := []string{index, queryStr}

	if len(returnFields) > 0 {
		fields := make([]string, 0, len(returnFields)+1)
		fields = append(fields, returnFields...)
		fields = append(fields, "__vector_score")
		args = append(args, "RETURN", strconv.Itoa(len(fields)))
		args = append(args, fields...)
	}

	args = append(args,
		"SORTBY", "__vector_score",
		"LIMIT", "0", strconv.Itoa(k),
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	return parseKNNResult(raw)
}

func parseKNNResult(raw []rueidis.RedisMessage) ([]SearchEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	entries := make([]SearchEntry, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := SearchEntry{Key: key, Fields: parseFieldPairs(fields)}

		if scoreStr, ok := entry.Fields["__vector_score"]; ok {
			if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				entry.Score = max(0, 1.0-d) // cosine distance to similarity, clamped
			}
			delete(entry.Fields, "__vector_score")
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
