// Package storage manages the directory of accepted images.
//
// Every accepted artwork is written once under a deterministic name
//
//	<slug(title)>_<source>_<id>.<ext>
//
// so that a directory scan can recover which (source, id) pairs were
// accepted. Writes go through a temporary file in the same directory and an
// atomic rename; a target that already exists is never rewritten.
//
// Usage:
//
//	manager, err := storage.NewManager("static")
//	if err != nil {
//	    return err
//	}
//	name := storage.FileName("Wheat Field", "met", "436535", "jpg")
//	path, existed, err := manager.Save(name, data)
package storage
