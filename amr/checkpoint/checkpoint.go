/*Package checkpoint implements the self-describing dump format a run
restarts from: a fixed-width Info group, then a flat table of navigable,
independently compressed Tree/Data/Particle groups, modeled on the
teacher's compressed-snapshot Writer/Reader pair in lib/compress/file.go.
Groups are looked up by name, and within each tree and data group patches
are ordered by a GAMER-style GID (level-major, then rank-major), so a group
can be decompressed and addressed without touching any other group in the
file.
*/
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/Aabhash007/gamer/amr"
	"github.com/Aabhash007/gamer/amr/particle"
	"github.com/Aabhash007/gamer/internal/wire"
)

const (
	// MagicNumber begins every checkpoint file, a guard against accidentally
	// loading an unrelated binary as a restart dump.
	MagicNumber uint32 = 0xa5a5c0de
	// Version is bumped whenever the group layout changes incompatibly.
	Version uint32 = 1
)

// Info is the fixed-width header every checkpoint carries: enough to
// reconstruct a Hierarchy's shape and decide whether a restart is even
// compatible with the running build before any group is touched.
type Info struct {
	MaxLevel  int32
	NVar      int32
	Rank      int32
	Ranks     int32
	Model     int32
	Step      int64
	Time      float64
	Dh0       float64 // root-level cell width
}

func (info Info) write(w io.Writer) error {
	return binary.Write(w, wire.SystemByteOrder(), info)
}

func readInfo(r io.Reader) (Info, error) {
	var info Info
	err := binary.Read(r, wire.SystemByteOrder(), &info)
	return info, err
}

// groupEntry is one row of the navigation table: a named, independently
// compressed byte range.
type groupEntry struct {
	Name     string
	Codec    Codec
	RawLen   int64
	CompLen  int64
	Offset   int64
}

// Writer accumulates named groups in memory, compressing each as it is
// added, and writes the whole file in one Flush call.
type Writer struct {
	info  Info
	codec Codec
	nav   []groupEntry
	data  *bytes.Buffer
}

// NewWriter starts a checkpoint write with the given header and default
// group codec.
func NewWriter(info Info, codec Codec) *Writer {
	return &Writer{info: info, codec: codec, data: &bytes.Buffer{}}
}

// AddGroup compresses raw and appends it to the file as a named group.
// Group names are checkpoint-local paths such as "tree.level2" or
// "particles.mass"; they are never interpreted, only matched on read.
func (w *Writer) AddGroup(name string, raw []byte) error {
	compressed, err := compress(w.codec, raw)
	if err != nil {
		return fmt.Errorf("checkpoint: compressing group %q: %w", name, err)
	}
	w.nav = append(w.nav, groupEntry{
		Name:    name,
		Codec:   w.codec,
		RawLen:  int64(len(raw)),
		CompLen: int64(len(compressed)),
		Offset:  int64(w.data.Len()),
	})
	w.data.Write(compressed)
	return nil
}

// AddTree serializes every real patch at level into a "tree.level<N>"
// group, GID-ordered so a reader can address any patch without decoding
// any other level.
func (w *Writer) AddTree(h *amr.Hierarchy, gid *amr.GIDTable, level int) error {
	rec, err := buildTreeRecord(h, gid, level)
	if err != nil {
		return err
	}
	raw, err := rec.marshal()
	if err != nil {
		return err
	}
	return w.AddGroup(fmt.Sprintf("tree.level%d", level), raw)
}

// AddFluid serializes one fluid variable across every real patch at level,
// in the same GID order AddTree used, into a "data.level<N>.var<V>" group.
func (w *Writer) AddFluid(h *amr.Hierarchy, level, varIdx int) error {
	ids, err := h.RealPatches(level)
	if err != nil {
		return err
	}
	cells := amr.PatchSize * amr.PatchSize * amr.PatchSize
	flat := make([]float64, 0, len(ids)*cells)
	for _, id := range ids {
		p, err := h.Patch(level, id)
		if err != nil {
			return err
		}
		vars := p.CurFluid()
		if varIdx < 0 || varIdx >= len(vars) {
			return fmt.Errorf("checkpoint: variable index %d out of range for a %d-variable patch",
				varIdx, len(vars))
		}
		flat = append(flat, vars[varIdx]...)
	}

	var buf bytes.Buffer
	if err := wire.WriteSlice(&buf, flat); err != nil {
		return err
	}
	return w.AddGroup(fmt.Sprintf("data.level%d.var%d", level, varIdx), buf.Bytes())
}

// AddParticles serializes every field in store into its own
// "particles.<name>" group. Only fields backed by []float64 or []uint64 are
// supported; any other field (a Vec64, for one) makes it return an error.
func (w *Writer) AddParticles(store particle.Store) error {
	for name, field := range store {
		var buf bytes.Buffer
		switch data := field.Data().(type) {
		case []float64:
			if err := wire.WriteSlice(&buf, data); err != nil {
				return err
			}
		case []uint64:
			if err := wire.WriteSlice(&buf, data); err != nil {
				return err
			}
		default:
			return fmt.Errorf("checkpoint: particle field %q has an unsupported backing type %T",
				name, data)
		}
		if err := w.AddGroup("particles."+name, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes the magic number, version, Info header, navigation table,
// and every group's compressed bytes to fname, in that order.
func (w *Writer) Flush(fname string) error {
	fp, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer fp.Close()

	order := wire.SystemByteOrder()
	if err := binary.Write(fp, order, MagicNumber); err != nil {
		return err
	}
	if err := binary.Write(fp, order, Version); err != nil {
		return err
	}
	if err := w.info.write(fp); err != nil {
		return err
	}

	if err := binary.Write(fp, order, int64(len(w.nav))); err != nil {
		return err
	}
	for _, g := range w.nav {
		if err := writeGroupEntry(fp, order, g); err != nil {
			return err
		}
	}

	_, err = fp.Write(w.data.Bytes())
	return err
}

func writeGroupEntry(w io.Writer, order binary.ByteOrder, g groupEntry) error {
	nameBytes := []byte(g.Name)
	if err := binary.Write(w, order, int32(len(nameBytes))); err != nil {
		return err
	}
	if _, err := w.Write(nameBytes); err != nil {
		return err
	}
	if err := binary.Write(w, order, uint32(g.Codec)); err != nil {
		return err
	}
	if err := binary.Write(w, order, g.RawLen); err != nil {
		return err
	}
	if err := binary.Write(w, order, g.CompLen); err != nil {
		return err
	}
	return binary.Write(w, order, g.Offset)
}

func readGroupEntry(r io.Reader, order binary.ByteOrder) (groupEntry, error) {
	var g groupEntry
	var nameLen int32
	if err := binary.Read(r, order, &nameLen); err != nil {
		return g, err
	}
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return g, err
	}
	g.Name = string(nameBytes)

	var codec uint32
	if err := binary.Read(r, order, &codec); err != nil {
		return g, err
	}
	g.Codec = Codec(codec)

	if err := binary.Read(r, order, &g.RawLen); err != nil {
		return g, err
	}
	if err := binary.Read(r, order, &g.CompLen); err != nil {
		return g, err
	}
	if err := binary.Read(r, order, &g.Offset); err != nil {
		return g, err
	}
	return g, nil
}

// Reader opens a checkpoint file and lets groups be pulled out by name in
// any order, decompressing only what's asked for.
type Reader struct {
	Info Info

	fname      string
	dataOffset int64
	nav        map[string]groupEntry
}

// NewReader opens fname, validates its magic number and version, and
// parses its navigation table without touching any group's data.
func NewReader(fname string) (*Reader, error) {
	fp, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	order := wire.SystemByteOrder()
	var magic, version uint32
	if err := binary.Read(fp, order, &magic); err != nil {
		return nil, err
	}
	if magic != MagicNumber {
		return nil, fmt.Errorf("checkpoint: %s is not a checkpoint file (bad magic number %x)", fname, magic)
	}
	if err := binary.Read(fp, order, &version); err != nil {
		return nil, err
	}
	if version > Version {
		return nil, fmt.Errorf(
			"checkpoint: %s was written with format version %d, newer than this build's %d",
			fname, version, Version)
	}

	info, err := readInfo(fp)
	if err != nil {
		return nil, err
	}

	var nGroups int64
	if err := binary.Read(fp, order, &nGroups); err != nil {
		return nil, err
	}
	nav := make(map[string]groupEntry, nGroups)
	for i := int64(0); i < nGroups; i++ {
		g, err := readGroupEntry(fp, order)
		if err != nil {
			return nil, err
		}
		nav[g.Name] = g
	}

	dataOffset, err := fp.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	return &Reader{Info: info, fname: fname, dataOffset: dataOffset, nav: nav}, nil
}

// GroupNames lists every group stored in the file, for diagnostics and
// for discovering which fluid variables or particle fields a dump has.
func (rd *Reader) GroupNames() []string {
	names := make([]string, 0, len(rd.nav))
	for name := range rd.nav {
		names = append(names, name)
	}
	return names
}

// ReadGroup returns a group's decompressed bytes.
func (rd *Reader) ReadGroup(name string) ([]byte, error) {
	g, ok := rd.nav[name]
	if !ok {
		return nil, fmt.Errorf("checkpoint: %s has no group %q", rd.fname, name)
	}

	fp, err := os.Open(rd.fname)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	if _, err := fp.Seek(rd.dataOffset+g.Offset, io.SeekStart); err != nil {
		return nil, err
	}
	compressed := make([]byte, g.CompLen)
	if _, err := io.ReadFull(fp, compressed); err != nil {
		return nil, err
	}

	return decompress(g.Codec, compressed, int(g.RawLen))
}

// ReadFluid returns one fluid variable's flat, GID-ordered values at a
// level.
func (rd *Reader) ReadFluid(level, varIdx, nPatches int) ([]float64, error) {
	raw, err := rd.ReadGroup(fmt.Sprintf("data.level%d.var%d", level, varIdx))
	if err != nil {
		return nil, err
	}
	cells := amr.PatchSize * amr.PatchSize * amr.PatchSize
	out := make([]float64, nPatches*cells)
	if err := wire.ReadSlice(bytes.NewReader(raw), out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadParticleField returns one particle attribute's raw values, typed by
// kind ("f64" or "u64").
func (rd *Reader) ReadParticleField(name, kind string, n int) (particle.Field, error) {
	raw, err := rd.ReadGroup("particles." + name)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "f64":
		out := make([]float64, n)
		if err := wire.ReadSlice(bytes.NewReader(raw), out); err != nil {
			return nil, err
		}
		return particle.NewFloat64(name, out), nil
	case "u64":
		out := make([]uint64, n)
		if err := wire.ReadSlice(bytes.NewReader(raw), out); err != nil {
			return nil, err
		}
		return particle.NewUint64(name, out), nil
	default:
		return nil, fmt.Errorf("checkpoint: unrecognized particle field kind %q", kind)
	}
}
