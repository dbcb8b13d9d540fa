/*Package wire contains the raw binary-array I/O used by the checkpoint
serializer: byte-order detection and
generic slice read/write helpers that avoid the per-element overhead of
encoding/binary's reflection path.*/
package wire

import (
	"encoding/binary"
	"io"
	"unsafe"
)

// SystemByteOrder returns the host's native byte order.
func SystemByteOrder() binary.ByteOrder {
	b := [2]byte{}
	*(*uint16)(unsafe.Pointer(&b[0])) = uint16(0x0001)
	if b[0] == 0 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// WriteSlice writes a flat numeric slice using the host's native byte order.
// Supported element types: int32, int64, uint32, uint64, float32, float64.
func WriteSlice(w io.Writer, buf interface{}) error {
	order := SystemByteOrder()
	switch x := buf.(type) {
	case []int32:
		return binary.Write(w, order, x)
	case []int64:
		return binary.Write(w, order, x)
	case []uint32:
		return binary.Write(w, order, x)
	case []uint64:
		return binary.Write(w, order, x)
	case []float32:
		return binary.Write(w, order, x)
	case []float64:
		return binary.Write(w, order, x)
	case [][3]float64:
		return binary.Write(w, order, flattenVec64(x))
	}
	panic("wire: unrecognized slice type passed to WriteSlice")
}

// ReadSlice reads into a pre-sized flat numeric slice using the host's
// native byte order. buf must already have the correct length.
func ReadSlice(r io.Reader, buf interface{}) error {
	order := SystemByteOrder()
	switch x := buf.(type) {
	case []int32:
		return binary.Read(r, order, x)
	case []int64:
		return binary.Read(r, order, x)
	case []uint32:
		return binary.Read(r, order, x)
	case []uint64:
		return binary.Read(r, order, x)
	case []float32:
		return binary.Read(r, order, x)
	case []float64:
		return binary.Read(r, order, x)
	case [][3]float64:
		return binary.Read(r, order, flattenVec64(x))
	}
	panic("wire: unrecognized slice type passed to ReadSlice")
}

// flattenVec64 reinterprets a [][3]float64 slice as a []float64 of three
// times the length without copying, the way the teacher's WriteAsBytes does
// for its own vector types.
func flattenVec64(x [][3]float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	return unsafe.Slice(&x[0][0], len(x)*3)
}
