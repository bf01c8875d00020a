package hdf5

import (
	"os"
	"path/filepath"
	"testing"
)

// writeAttrFixture builds a file whose dataset carries a float and a string
// attribute, then reopens it for reading.
func writeAttrFixture(t *testing.T) *File {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "hdf5-attr-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	path := filepath.Join(tmpDir, "attrs.h5")
	f, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, err = f.Root().CreateDataset("data", []float64{1, 2, 3},
		WithAttribute("float_attr", 3.14),
		WithAttribute("string_attr", "hello"))
	if err != nil {
		t.Fatalf("CreateDataset failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	out, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { out.Close() })
	return out
}

func TestAttributeValue(t *testing.T) {
	f := writeAttrFixture(t)

	ds, err := f.OpenDataset("data")
	if err != nil {
		t.Fatalf("OpenDataset failed: %v", err)
	}

	attr := ds.Attr("float_attr")
	if attr == nil {
		t.Fatal("float_attr not found")
	}
	val, err := attr.Value()
	if err != nil {
		t.Errorf("Value() failed for float_attr: %v", err)
	}
	if v, ok := val.(float64); !ok || v != 3.14 {
		t.Errorf("float_attr: got %v (%T), want 3.14", val, val)
	}

	attr = ds.Attr("string_attr")
	if attr == nil {
		t.Fatal("string_attr not found")
	}
	val, err = attr.Value()
	if err != nil {
		t.Errorf("Value() failed for string_attr: %v", err)
	}
	if v, ok := val.(string); !ok || v != "hello" {
		t.Errorf("string_attr: got %v (%T), want 'hello'", val, val)
	}
}

func TestGetAttr(t *testing.T) {
	f := writeAttrFixture(t)

	attr, err := f.GetAttr("/data@float_attr")
	if err != nil {
		t.Fatalf("GetAttr failed: %v", err)
	}
	if attr == nil {
		t.Fatal("GetAttr returned nil")
	}

	val, err := attr.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v, ok := val.(float64); !ok || v != 3.14 {
		t.Errorf("got %v (%T), want 3.14", val, val)
	}
}

func TestReadAttr(t *testing.T) {
	f := writeAttrFixture(t)

	val, err := f.ReadAttr("/data@string_attr")
	if err != nil {
		t.Fatalf("ReadAttr failed: %v", err)
	}
	if v, ok := val.(string); !ok || v != "hello" {
		t.Errorf("got %v (%T), want 'hello'", val, val)
	}
}

func TestGetAttrNotFound(t *testing.T) {
	f := writeAttrFixture(t)

	if _, err := f.GetAttr("/data@nonexistent"); err == nil {
		t.Error("expected error for non-existent attribute")
	}
	if _, err := f.GetAttr("/nonexistent@attr"); err == nil {
		t.Error("expected error for non-existent object")
	}
}
