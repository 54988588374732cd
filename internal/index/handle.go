package index

import "github.com/Masterminds/semver/v3"

// Handle is the single capability both index variants expose: given a
// crate name, return its ascending, unyanked version list. Code that
// reads versions is written against this interface only; it never
// branches on which variant it holds.
type Handle interface {
	// Versions returns the known ascending version list for name. The
	// bool reports whether the crate is present in the index at all;
	// the error is non-nil only for a genuine index failure (a
	// version-line parse error, or an unreadable index object) and must
	// be distinguished from "not found" by callers — spec.md §4.4's
	// parse failures propagate as a fatal IndexError, not as an absent
	// crate.
	Versions(name string) ([]*semver.Version, bool, error)

	// IsSparse reports which variant backs this handle.
	IsSparse() bool
}
