package efs

import "io/fs"

// On-disk mode bits, laid out like linux's stat.st_mode so a mode value
// read straight out of an inode means the same thing a Unix caller
// expects. Only the regular-file and directory type bits are ever
// produced by this engine; the rest are kept for readability of raw
// mode values and for ModeToUnix/UnixToMode symmetry.
const (
	S_IFMT  = 0xf000
	S_IFREG = 0x8000
	S_IFDIR = 0x4000

	S_IRUSR = 0x100
	S_IWUSR = 0x80
	S_IXUSR = 0x40
	S_IRGRP = 0x20
	S_IWGRP = 0x10
	S_IXGRP = 0x8
	S_IROTH = 0x4
	S_IWOTH = 0x2
	S_IXOTH = 0x1

	// DefaultRegularMode and DefaultDirMode mirror the original oefs
	// driver's FS_S_REG_DEFAULT/FS_S_DIR_DEFAULT (type bits fixed,
	// 0644/0755 perm). Mkfs gives the root directory DefaultDirMode;
	// Create and Mkdir store the type bits plus the caller's permission
	// bits instead.
	DefaultRegularMode = S_IFREG | 0644
	DefaultDirMode     = S_IFDIR | 0755
)

// UnixToMode converts an on-disk mode value into an fs.FileMode.
func UnixToMode(mode uint32) fs.FileMode {
	res := fs.FileMode(mode & 0777)

	switch mode & S_IFMT {
	case S_IFDIR:
		res |= fs.ModeDir
	case S_IFREG:
		// no extra bits
	}

	return res
}

// ModeToUnix converts an fs.FileMode into an on-disk mode value. Only the
// type bit and the permission bits are preserved; this engine does not
// track setuid/setgid/sticky.
func ModeToUnix(mode fs.FileMode) uint32 {
	res := uint32(mode.Perm())

	if mode&fs.ModeDir == fs.ModeDir {
		res |= S_IFDIR
	} else {
		res |= S_IFREG
	}

	return res
}

// typeOfMode reports the Type implied by an on-disk mode value.
func typeOfMode(mode uint32) Type {
	if mode&S_IFMT == S_IFDIR {
		return DirType
	}
	return FileType
}
