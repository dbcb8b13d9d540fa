package checkpoint

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/DataDog/zstd"
)

// Codec selects which whole-buffer compressor a checkpoint group uses,
// the role MethodFlag plays in the teacher's compressed snapshot format
// even though a checkpoint compresses whole byte groups rather than
// running a per-field predictive transform.
type Codec uint32

const (
	// Zstd compresses every group with github.com/DataDog/zstd, the
	// default: fast enough to checkpoint mid-simulation without stalling
	// the timestep loop.
	Zstd Codec = iota
	// Zlib compresses with the standard library's compress/zlib. It is used
	// only when a caller passes it to NewWriter; this package always imports
	// github.com/DataDog/zstd, which needs cgo to build.
	Zlib
)

func (c Codec) String() string {
	switch c {
	case Zstd:
		return "zstd"
	case Zlib:
		return "zlib"
	default:
		return fmt.Sprintf("Codec(%d)", uint32(c))
	}
}

func compress(codec Codec, raw []byte) ([]byte, error) {
	switch codec {
	case Zstd:
		return zstd.Compress(nil, raw)
	case Zlib:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("checkpoint: unrecognized codec %d", codec)
	}
}

func decompress(codec Codec, compressed []byte, rawLen int) ([]byte, error) {
	switch codec {
	case Zstd:
		return zstd.Decompress(make([]byte, 0, rawLen), compressed)
	case Zlib:
		r, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		out := make([]byte, rawLen)
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("checkpoint: unrecognized codec %d", codec)
	}
}
