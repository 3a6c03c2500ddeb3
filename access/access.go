// Package access implements the programmatic read/write permission gate
// around query compilation, ported from the teacher module's auth package
// (dolthub-go-mysql-server/auth). There is no query-language surface for
// this (no GRANT statement) — callers pass a Permission into plan.Compile
// (which requires WritePerm and ReadPerm, since its plan writes a file) or
// plan.CompileToRows (which requires ReadPerm). Catalog mutation methods
// take no Permission and are not checked.
package access

import (
	"gopkg.in/src-d/go-errors.v1"
)

// Permission is a bitmask of granted capabilities.
type Permission int

const (
	ReadPerm Permission = 1 << iota
	WritePerm
)

// AllPermissions grants every capability, used by the CLI's default
// single-user mode.
const AllPermissions = ReadPerm | WritePerm

func (p Permission) String() string {
	switch p {
	case ReadPerm:
		return "read"
	case WritePerm:
		return "write"
	case AllPermissions:
		return "read,write"
	case 0:
		return "none"
	default:
		return "unknown"
	}
}

// ErrNotAuthorized is raised by Check when required is not a subset of
// granted.
var ErrNotAuthorized = errors.NewKind("not authorized: requires %s permission")

// Check returns ErrNotAuthorized unless every bit of required is present in
// granted.
func Check(granted, required Permission) error {
	if granted&required != required {
		return ErrNotAuthorized.New(required)
	}
	return nil
}
