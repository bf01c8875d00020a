package hdf5

import (
	"path"
)

// WalkFunc is called for each object during traversal.
// path is the full path to the object.
// obj is either *Group or *Dataset.
// err is any error encountered opening the object.
// Return nil to continue walking, or an error to stop.
type WalkFunc func(path string, obj interface{}, err error) error

// Walk traverses all objects (groups and datasets) in the hierarchy starting
// from g, in depth-first order. The callback is called for each group and
// dataset, including the starting group.
//
// Example:
//
//	Walk(f.Root(), func(path string, obj interface{}, err error) error {
//	    if err != nil {
//	        return err // or skip: return nil
//	    }
//	    switch o := obj.(type) {
//	    case *Group:
//	        fmt.Println("group:", path)
//	    case *Dataset:
//	        fmt.Println("dataset:", path, "shape:", o.Shape())
//	    }
//	    return nil
//	})
func Walk(g *Group, fn WalkFunc) error {
	return walkGroup(g, fn)
}

func walkGroup(g *Group, fn WalkFunc) error {
	if err := fn(g.Path(), g, nil); err != nil {
		return err
	}

	members, err := g.Members()
	if err != nil {
		return err
	}

	for _, name := range members {
		childPath := path.Join(g.Path(), name)

		if childGroup, err := g.OpenGroup(name); err == nil {
			if err := walkGroup(childGroup, fn); err != nil {
				return err
			}
			continue
		}

		dataset, err := g.OpenDataset(name)
		if err == nil {
			if err := fn(childPath, dataset, nil); err != nil {
				return err
			}
			continue
		}

		// Neither a group nor a dataset the codec can open. The callback
		// decides whether that ends the walk.
		if err := fn(childPath, nil, err); err != nil {
			return err
		}
	}

	return nil
}

// ErrStopWalk can be returned from a WalkFunc to stop walking without
// reporting an error.
var ErrStopWalk = &walkStopError{}

type walkStopError struct{}

func (e *walkStopError) Error() string { return "walk stopped" }

// IsStopWalk returns true if the error is ErrStopWalk.
func IsStopWalk(err error) bool {
	_, ok := err.(*walkStopError)
	return ok
}
