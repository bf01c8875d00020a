// Package hdf5 provides a pure Go implementation for reading HDF5 files.
package hdf5

import "errors"

// Sentinel errors returned by file and object operations. Callers can
// test for them with errors.Is.
var (
	ErrNotHDF5       = errors.New("not an HDF5 file")
	ErrNotFound      = errors.New("object not found")
	ErrNotDataset    = errors.New("object is not a dataset")
	ErrNotGroup      = errors.New("object is not a group")
	ErrUnsupported   = errors.New("unsupported feature")
	ErrInvalidPath   = errors.New("invalid path")
	ErrClosed        = errors.New("file is closed")
	ErrLinkDepth     = errors.New("maximum link depth exceeded")
)

// MaxLinkDepth bounds the number of soft/external links followed during a
// single path resolution, so link cycles fail instead of recursing forever.
const MaxLinkDepth = 100
