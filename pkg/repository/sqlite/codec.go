package sqlite

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const (
	vectorHeaderSize = 4
	vectorValueSize  = 4
)

// encodeVector lays out [uint32 dim][dim x float32], little-endian
func encodeVector(vector []float32) []byte {
	blob := make([]byte, vectorHeaderSize+len(vector)*vectorValueSize)
	binary.LittleEndian.PutUint32(blob[:vectorHeaderSize], uint32(len(vector)))

	offset := vectorHeaderSize
	for _, v := range vector {
		binary.LittleEndian.PutUint32(blob[offset:offset+vectorValueSize], math.Float32bits(v))
		offset += vectorValueSize
	}
	return blob
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob) < vectorHeaderSize {
		return nil, goerr.New("invalid vector blob", goerr.V("length", len(blob)))
	}

	dim := int(binary.LittleEndian.Uint32(blob[:vectorHeaderSize]))
	if len(blob) != vectorHeaderSize+dim*vectorValueSize {
		return nil, goerr.New("vector blob length mismatch", goerr.V("dim", dim), goerr.V("length", len(blob)))
	}

	vector := make([]float32, dim)
	offset := vectorHeaderSize
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[offset : offset+vectorValueSize]))
		offset += vectorValueSize
	}
	return vector, nil
}

func encodeJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode json column")
	}
	return string(raw), nil
}

func decodeJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return goerr.Wrap(err, "failed to decode json column")
	}
	return nil
}

func toNS(t time.Time) int64 {
	return t.UnixNano()
}

func fromNS(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func fromNullNS(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := fromNS(ns.Int64)
	return &t
}

func toNullNS(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}
