package hdf5

import (
	"fmt"

	"github.com/simdata/snapload/internal/dtype"
	"github.com/simdata/snapload/internal/message"
)

// Datatype returns the on-disk datatype message for this dataset.
// It can be passed to CreateDatasetWithType to clone the type into
// another file.
func (d *Dataset) Datatype() *message.Datatype {
	return d.datatype
}

// RowBytes returns the number of bytes occupied by one row (one index
// along axis 0) of the dataset.
func (d *Dataset) RowBytes() uint64 {
	dims := d.Shape()
	n := uint64(d.DtypeSize())
	for i := 1; i < len(dims); i++ {
		n *= dims[i]
	}
	return n
}

// ReadRowsRaw reads count rows starting at row start as raw bytes.
// A "row" is a full slab along all trailing axes at one index of axis 0.
func (d *Dataset) ReadRowsRaw(start, count uint64) ([]byte, error) {
	if d.layout == nil {
		return nil, fmt.Errorf("dataset %s not opened for reading", d.path)
	}
	dims := d.Shape()
	if len(dims) == 0 {
		return nil, fmt.Errorf("cannot read rows of scalar dataset %s", d.path)
	}
	if start+count > dims[0] {
		return nil, fmt.Errorf("row range [%d,%d) out of bounds for dataset %s with %d rows",
			start, start+count, d.path, dims[0])
	}

	sel := make([]uint64, len(dims))
	cnt := make([]uint64, len(dims))
	sel[0] = start
	cnt[0] = count
	for i := 1; i < len(dims); i++ {
		cnt[i] = dims[i]
	}

	raw, err := d.layout.ReadSlice(sel, cnt)
	if err != nil {
		return nil, fmt.Errorf("reading rows [%d,%d) of %s: %w", start, start+count, d.path, err)
	}
	return raw, nil
}

// ReadRows reads count rows starting at row start into dest, which must be
// a pointer to a slice of the appropriate element type. The result is flat
// in row-major order.
func (d *Dataset) ReadRows(start, count uint64, dest interface{}) error {
	raw, err := d.ReadRowsRaw(start, count)
	if err != nil {
		return err
	}

	dims := d.Shape()
	numElements := count
	for i := 1; i < len(dims); i++ {
		numElements *= dims[i]
	}
	return dtype.Convert(d.datatype, raw, numElements, dest)
}

// WriteRaw writes pre-encoded bytes to a dataset created with
// CreateDatasetWithType. The byte layout must match the dataset's datatype
// exactly; no conversion is performed.
func (ds *Dataset) WriteRaw(raw []byte) error {
	if !ds.file.writable {
		return fmt.Errorf("file is not writable")
	}
	if ds.dataAddr == 0 {
		return fmt.Errorf("dataset was not created for writing")
	}
	if uint64(len(raw)) != ds.dataSize {
		return fmt.Errorf("data size mismatch: expected %d, got %d", ds.dataSize, len(raw))
	}

	w := ds.file.writer.At(int64(ds.dataAddr))
	if err := w.WriteBytes(raw); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}
	return nil
}
