package efs

import "io/fs"

// Type identifies what a directory entry or inode refers to. The engine
// only ever stores the two concrete kinds named in the data model;
// symlinks and special files are out of scope (see Non-goals).
type Type uint8

const (
	FileType Type = iota + 1
	DirType
)

func (t Type) IsDir() bool {
	return t == DirType
}

// Mode returns an fs.FileMode carrying only the type bit for t.
func (t Type) Mode() fs.FileMode {
	switch t {
	case DirType:
		return fs.ModeDir
	case FileType:
		return 0
	default:
		return fs.ModeIrregular
	}
}

func (t Type) String() string {
	switch t {
	case FileType:
		return "file"
	case DirType:
		return "dir"
	default:
		return "unknown"
	}
}
