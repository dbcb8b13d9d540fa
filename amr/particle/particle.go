/*Package particle implements the generic, name-indexed field container
attached particles use: positions, velocities, mass, and any passive
scalars a star-formation rule wants to carry (metal fraction, creation
time, particle type). The Field abstraction and its Transfer/
CreateDestination contract are carried over from the teacher's particle
field package, generalized from snapshot splitting to particle injection
and migration between patches.
*/
package particle

import "fmt"

// Store maps a field name to its backing Field, the live set of attached
// particles for one rank (or one patch, when used as a per-patch scratch
// buffer during injection).
type Store map[string]Field

// Field is the generic interface every particle attribute array
// implements.
type Field interface {
	// Len returns the number of particles the field currently holds.
	Len() int
	// Data returns the backing array as an interface{}.
	Data() interface{}
	// Transfer copies the values at indices 'from' into dest's matching
	// field at indices 'to'.
	Transfer(dest Store, from, to []int) error
	// CreateDestination allocates a same-named, same-typed field of length
	// n inside dest.
	CreateDestination(dest Store, n int)
}

var (
	_ Field = &Float64{}
	_ Field = &Vec64{}
	_ Field = &Uint64{}
)

// Float64 implements Field for scalar attributes (mass, metal fraction,
// creation time, ...).
type Float64 struct {
	name string
	data []float64
}

func NewFloat64(name string, x []float64) *Float64 { return &Float64{name, x} }
func (x *Float64) Len() int                        { return len(x.data) }
func (x *Float64) Data() interface{}                { return x.data }
func (x *Float64) Name() string                     { return x.name }

func (x *Float64) CreateDestination(dest Store, n int) {
	dest[x.name] = NewFloat64(x.name, make([]float64, n))
}

func (x *Float64) Transfer(dest Store, from, to []int) error {
	destField, ok := dest[x.name]
	if !ok {
		return fmt.Errorf("destination store has no field %q", x.name)
	}
	destData, ok := destField.Data().([]float64)
	if !ok {
		return fmt.Errorf("field %q in destination store is not []float64", x.name)
	}
	if len(from) != len(to) {
		return fmt.Errorf("'from' has length %d, 'to' has length %d", len(from), len(to))
	}
	for i := range from {
		destData[to[i]] = x.data[from[i]]
	}
	return nil
}

// Uint64 implements Field for integer attributes (particle id, type tag).
type Uint64 struct {
	name string
	data []uint64
}

func NewUint64(name string, x []uint64) *Uint64 { return &Uint64{name, x} }
func (x *Uint64) Len() int                      { return len(x.data) }
func (x *Uint64) Data() interface{}              { return x.data }

func (x *Uint64) CreateDestination(dest Store, n int) {
	dest[x.name] = NewUint64(x.name, make([]uint64, n))
}

func (x *Uint64) Transfer(dest Store, from, to []int) error {
	destField, ok := dest[x.name]
	if !ok {
		return fmt.Errorf("destination store has no field %q", x.name)
	}
	destData, ok := destField.Data().([]uint64)
	if !ok {
		return fmt.Errorf("field %q in destination store is not []uint64", x.name)
	}
	if len(from) != len(to) {
		return fmt.Errorf("'from' has length %d, 'to' has length %d", len(from), len(to))
	}
	for i := range from {
		destData[to[i]] = x.data[from[i]]
	}
	return nil
}

// Vec64 implements Field for 3-vector attributes (position, velocity). It
// holds its values as [][3]float64; CreateDestination and Transfer write
// them into three scalar Float64 fields named "name[0..2]" in the
// destination store, so a checkpoint writer sees a flat set of scalar
// datasets there.
type Vec64 struct {
	dimNames [3]string
	data     [][3]float64
}

func NewVec64(name string, x [][3]float64) *Vec64 {
	var dims [3]string
	for d := range dims {
		dims[d] = fmt.Sprintf("%s[%d]", name, d)
	}
	return &Vec64{dims, x}
}

func (x *Vec64) Len() int           { return len(x.data) }
func (x *Vec64) Data() interface{} { return x.data }

func (x *Vec64) CreateDestination(dest Store, n int) {
	for _, name := range x.dimNames {
		dest[name] = NewFloat64(name, make([]float64, n))
	}
}

func (x *Vec64) Transfer(dest Store, from, to []int) error {
	if len(from) != len(to) {
		return fmt.Errorf("'from' has length %d, 'to' has length %d", len(from), len(to))
	}
	for dim, name := range x.dimNames {
		destField, ok := dest[name]
		if !ok {
			return fmt.Errorf("destination store has no field %q", name)
		}
		destData, ok := destField.Data().([]float64)
		if !ok {
			return fmt.Errorf("field %q in destination store is not []float64", name)
		}
		for i := range from {
			destData[to[i]] = x.data[from[i]][dim]
		}
	}
	return nil
}
