package efs

// Directory entries are stored as an ordinary packed byte stream inside
// a directory's own data blocks — the directory layer is built entirely
// on top of the same readAt/writeAt path regular files use.

// dirChainAndSize loads a directory's inode chain and current size.
func (m *Mount) dirChainAndSize(dirIno uint32) ([]uint32, uint64, error) {
	head, err := readInode(m.dev, dirIno)
	if err != nil {
		return nil, 0, err
	}
	if typeOfMode(head.Mode) != DirType {
		return nil, 0, NotDirectory
	}
	chain, err := m.buildChain(dirIno)
	if err != nil {
		return nil, 0, err
	}
	return chain, head.Size, nil
}

// dirLookup performs a linear scan of dirIno's entries for name.
func (m *Mount) dirLookup(dirIno uint32, name string) (uint32, Type, error) {
	chain, size, err := m.dirChainAndSize(dirIno)
	if err != nil {
		return 0, 0, err
	}

	buf := make([]byte, DirentSize)
	for offset := int64(0); offset < int64(size); offset += DirentSize {
		if _, err := m.readAt(chain, size, offset, buf); err != nil {
			return 0, 0, err
		}
		var d dirent
		d.unmarshal(buf)
		if d.InodeNumber == 0 {
			continue
		}
		if d.name() == name {
			return d.InodeNumber, d.Type, nil
		}
	}

	return 0, 0, NotFound
}

// dirAddEntry writes a new entry into dirIno's payload, reusing the
// first empty (zeroed) slot if one exists, appending otherwise. It
// fails with Exists if name is already present.
func (m *Mount) dirAddEntry(dirIno uint32, name string, childIno uint32, childType Type) error {
	chain, size, err := m.dirChainAndSize(dirIno)
	if err != nil {
		return err
	}

	buf := make([]byte, DirentSize)
	emptyOffset := int64(-1)
	for offset := int64(0); offset < int64(size); offset += DirentSize {
		if _, err := m.readAt(chain, size, offset, buf); err != nil {
			return err
		}
		var d dirent
		d.unmarshal(buf)
		if d.InodeNumber == 0 {
			if emptyOffset < 0 {
				emptyOffset = offset
			}
			continue
		}
		if d.name() == name {
			return Exists
		}
	}

	var nd dirent
	nd.InodeNumber = childIno
	nd.Type = childType
	setDirentName(&nd, name)
	data := nd.marshal()

	newSize := size
	if emptyOffset >= 0 {
		if _, _, err := m.writeAt(&chain, size, emptyOffset, data); err != nil {
			return err
		}
	} else {
		var err error
		_, newSize, err = m.writeAt(&chain, size, int64(size), data)
		if err != nil {
			return err
		}
	}

	head, err := readInode(m.dev, dirIno)
	if err != nil {
		return err
	}
	head.Size = newSize
	return writeInode(m.dev, dirIno, head)
}

// dirRemoveEntry zeroes name's slot, leaving a hole (no compaction).
func (m *Mount) dirRemoveEntry(dirIno uint32, name string) error {
	chain, size, err := m.dirChainAndSize(dirIno)
	if err != nil {
		return err
	}

	buf := make([]byte, DirentSize)
	for offset := int64(0); offset < int64(size); offset += DirentSize {
		if _, err := m.readAt(chain, size, offset, buf); err != nil {
			return err
		}
		var d dirent
		d.unmarshal(buf)
		if d.InodeNumber == 0 {
			continue
		}
		if d.name() == name {
			var zero dirent
			zdata := zero.marshal()
			_, _, err := m.writeAt(&chain, size, offset, zdata)
			return err
		}
	}

	return NotFound
}

// dirEntryCount returns the number of non-empty entries in dirIno,
// used by rmdir to check for "exactly . and .." and by tests asserting
// readdir counts.
func (m *Mount) dirEntryCount(dirIno uint32) (int, error) {
	chain, size, err := m.dirChainAndSize(dirIno)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, DirentSize)
	count := 0
	for offset := int64(0); offset < int64(size); offset += DirentSize {
		if _, err := m.readAt(chain, size, offset, buf); err != nil {
			return 0, err
		}
		if byteOrder.Uint32(buf[0:4]) != 0 {
			count++
		}
	}
	return count, nil
}

// initDirectory writes the initial "." and ".." entries for a freshly
// created directory inode.
func (m *Mount) initDirectory(dirIno, parentIno uint32) error {
	chain, err := m.buildChain(dirIno)
	if err != nil {
		return err
	}

	var dot dirent
	dot.InodeNumber = dirIno
	dot.Type = DirType
	setDirentName(&dot, ".")

	var dotdot dirent
	dotdot.InodeNumber = parentIno
	dotdot.Type = DirType
	setDirentName(&dotdot, "..")

	if _, _, err := m.writeAt(&chain, 0, 0, dot.marshal()); err != nil {
		return err
	}
	if _, _, err := m.writeAt(&chain, DirentSize, DirentSize, dotdot.marshal()); err != nil {
		return err
	}

	head, err := readInode(m.dev, dirIno)
	if err != nil {
		return err
	}
	head.Size = 2 * DirentSize
	return writeInode(m.dev, dirIno, head)
}

// DirEntry is one entry returned by Dir.Readdir.
type DirEntry struct {
	Name string
	Ino  uint32
	Type Type
}

// Dir is a directory handle: the file handle conventions plus a
// readdir cursor.
type Dir struct {
	mnt    *Mount
	ino    uint32
	chain  []uint32
	size   uint64
	cursor int64
}

// Opendir resolves path to a directory and returns a cursor over its
// entries.
func (m *Mount) Opendir(path string) (*Dir, error) {
	ino, typ, err := m.resolve(path)
	if err != nil {
		return nil, err
	}
	if typ != DirType {
		return nil, NotDirectory
	}

	chain, size, err := m.dirChainAndSize(ino)
	if err != nil {
		return nil, err
	}

	m.acquireHandle(ino)
	return &Dir{mnt: m, ino: ino, chain: chain, size: size}, nil
}

// Readdir returns the next non-empty entry, or (nil, nil) once the
// directory is exhausted.
func (d *Dir) Readdir() (*DirEntry, error) {
	buf := make([]byte, DirentSize)
	for d.cursor < int64(d.size) {
		offset := d.cursor
		d.cursor += DirentSize

		if _, err := d.mnt.readAt(d.chain, d.size, offset, buf); err != nil {
			return nil, err
		}
		var de dirent
		de.unmarshal(buf)
		if de.InodeNumber == 0 {
			continue
		}
		return &DirEntry{Name: de.name(), Ino: de.InodeNumber, Type: de.Type}, nil
	}
	return nil, nil
}

// Closedir releases the directory handle.
func (d *Dir) Closedir() error {
	return d.mnt.releaseHandle(d.ino)
}
