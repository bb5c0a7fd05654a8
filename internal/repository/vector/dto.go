package vector

import (
	"encoding/binary"
	"math"
	"strconv"
)

// buildEmbFields converts a Record into a flat map for HSET. The vector is
// serialized as 4 bytes per float, little-endian, the layout FT.SEARCH
// expects for FLOAT32 vector fields.
func buildEmbFields(rec *Record) map[string]string {
	return map[string]string{
		"chunk_id":    rec.ChunkID,
		"doc_id":      rec.DocumentID,
		"doc_title":   rec.DocumentTitle,
		"doc_url":     rec.DocumentURL,
		"chunk_index": strconv.Itoa(rec.ChunkIndex),
		"content":     rec.Content,
		"provider":    rec.Provider,
		"model":       rec.Model,
		"threshold":   strconv.FormatFloat(rec.Threshold, 'f', -1, 64),
		"batch_index": strconv.Itoa(rec.BatchIndex),
		"batch_pos":   strconv.Itoa(rec.BatchPos),
		"vector":      vectorToBytes(rec.Vector),
	}
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
