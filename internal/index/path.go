// Package index implements the two-variant registry index handle: an
// on-disk bare Git clone, or an in-memory map of sorted candidate
// versions fetched over HTTPS from a sparse index.
package index

import (
	"fmt"
	"strings"
)

// SplitPackagePath derives the path components used to locate a crate's
// index entry, both inside a Git index tree and as a sparse-index URL
// path. Inner components are lowercased; the leaf keeps the original
// crate-name casing.
func SplitPackagePath(name string) ([]string, error) {
	switch len(name) {
	case 0:
		return nil, fmt.Errorf("empty package name")
	case 1:
		return []string{"1", name}, nil
	case 2:
		return []string{"2", name}, nil
	case 3:
		return []string{"3", strings.ToLower(name[:1]), name}, nil
	default:
		return []string{strings.ToLower(name[:2]), strings.ToLower(name[2:4]), name}, nil
	}
}
