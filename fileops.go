package efs

// Stat mirrors the fields the data model says stat must report. Fields
// fixed at zero (st_dev, st_uid, st_gid, st_rdev, the timestamps) are
// spelled out explicitly rather than omitted, matching the original
// driver's behaviour of always returning a fully populated struct.
type Stat struct {
	Dev     uint32
	Ino     uint32
	Mode    uint32
	NLink   uint32
	Uid     uint32
	Gid     uint32
	Rdev    uint32
	Size    uint64
	Blksize uint32
	Blocks  uint64
	Atime   uint32
	Mtime   uint32
	Ctime   uint32
}

func statFromInode(ino uint32, head *onDiskInode, blockCount int) *Stat {
	return &Stat{
		Ino:     ino,
		Mode:    head.Mode,
		NLink:   head.NLink,
		Size:    head.Size,
		Blksize: BlockSize,
		Blocks:  uint64(blockCount),
	}
}

// countDataBlocks counts the non-zero direct-block slots across chain,
// used to populate Stat.Blocks.
func (m *Mount) countDataBlocks(chain []uint32) (int, error) {
	n := 0
	for _, blkno := range chain {
		ino, err := readInode(m.dev, blkno)
		if err != nil {
			return 0, err
		}
		for _, d := range ino.DirectBlock {
			if d != 0 {
				n++
			}
		}
	}
	return n, nil
}

// Stat resolves path and reports its metadata.
func (m *Mount) Stat(path string) (*Stat, error) {
	ino, _, err := m.resolve(path)
	if err != nil {
		return nil, err
	}
	head, err := readInode(m.dev, ino)
	if err != nil {
		return nil, err
	}
	chain, err := m.buildChain(ino)
	if err != nil {
		return nil, err
	}
	n, err := m.countDataBlocks(chain)
	if err != nil {
		return nil, err
	}
	return statFromInode(ino, head, n), nil
}

// Create makes a new regular file at path and returns an open handle on
// it, failing with Exists if something is already there.
func (m *Mount) Create(path string, perm uint32) (*File, error) {
	parent, name, err := m.resolveParent(path)
	if err != nil {
		return nil, err
	}
	if _, _, err := m.dirLookup(parent, name); err == nil {
		return nil, Exists
	} else if err != NotFound {
		return nil, err
	}

	blkno, err := m.allocInodeBlock()
	if err != nil {
		return nil, err
	}
	ino := &onDiskInode{
		Magic: inodeMagic,
		Mode:  S_IFREG | (perm & 0777),
		NLink: 1,
	}
	if err := writeInode(m.dev, blkno, ino); err != nil {
		return nil, err
	}

	if err := m.dirAddEntry(parent, name, blkno, FileType); err != nil {
		m.freeBlock(blkno)
		return nil, err
	}

	return m.newFileHandle(blkno)
}

// Open resolves path and returns an open handle, honouring OpenCreate,
// OpenExcl, OpenTrunc and OpenAppend.
func (m *Mount) Open(path string, flags int, perm uint32) (*File, error) {
	ino, typ, err := m.resolve(path)
	if err == NotFound {
		if flags&OpenCreate == 0 {
			return nil, NotFound
		}
		f, err := m.Create(path, perm)
		if err != nil {
			return nil, err
		}
		f.append = flags&OpenAppend != 0
		return f, nil
	}
	if err != nil {
		return nil, err
	}
	if flags&OpenCreate != 0 && flags&OpenExcl != 0 {
		return nil, Exists
	}
	if typ == DirType {
		return nil, IsDirectory
	}

	f, err := m.newFileHandle(ino)
	if err != nil {
		return nil, err
	}
	f.append = flags&OpenAppend != 0

	if flags&OpenTrunc != 0 {
		if err := m.truncateToBlocks(&f.chain, 0); err != nil {
			f.Close()
			return nil, err
		}
		f.size = 0
		head, err := readInode(m.dev, ino)
		if err != nil {
			f.Close()
			return nil, err
		}
		head.Size = 0
		if err := writeInode(m.dev, ino, head); err != nil {
			f.Close()
			return nil, IO
		}
	}

	return f, nil
}

// Mkdir creates an empty directory (containing only "." and "..") at
// path.
func (m *Mount) Mkdir(path string, perm uint32) error {
	parent, name, err := m.resolveParent(path)
	if err != nil {
		return err
	}
	if _, _, err := m.dirLookup(parent, name); err == nil {
		return Exists
	} else if err != NotFound {
		return err
	}

	blkno, err := m.allocInodeBlock()
	if err != nil {
		return err
	}
	ino := &onDiskInode{
		Magic: inodeMagic,
		Mode:  S_IFDIR | (perm & 0777),
		NLink: 1,
	}
	if err := writeInode(m.dev, blkno, ino); err != nil {
		return err
	}

	if err := m.initDirectory(blkno, parent); err != nil {
		m.freeBlock(blkno)
		return err
	}

	if err := m.dirAddEntry(parent, name, blkno, DirType); err != nil {
		m.releaseInode([]uint32{blkno})
		return err
	}

	return nil
}

// Rmdir removes an empty directory. Only "." and ".." may remain.
func (m *Mount) Rmdir(path string) error {
	parent, name, err := m.resolveParent(path)
	if err != nil {
		return err
	}

	childIno, childType, err := m.dirLookup(parent, name)
	if err != nil {
		return err
	}
	if childType != DirType {
		return NotDirectory
	}

	count, err := m.dirEntryCount(childIno)
	if err != nil {
		return err
	}
	if count > 2 {
		return NotEmpty
	}

	if err := m.dirRemoveEntry(parent, name); err != nil {
		return err
	}

	return m.markPendingDelete(childIno)
}

// Unlink removes a directory entry pointing at a regular file and
// decrements its link count, freeing the inode once both the link count
// reaches zero and no handle still has it open.
func (m *Mount) Unlink(path string) error {
	parent, name, err := m.resolveParent(path)
	if err != nil {
		return err
	}

	childIno, childType, err := m.dirLookup(parent, name)
	if err != nil {
		return err
	}
	if childType != FileType {
		return IsDirectory
	}

	head, err := readInode(m.dev, childIno)
	if err != nil {
		return err
	}

	if err := m.dirRemoveEntry(parent, name); err != nil {
		return err
	}

	head.NLink--
	if err := writeInode(m.dev, childIno, head); err != nil {
		return err
	}

	if head.NLink == 0 {
		return m.markPendingDelete(childIno)
	}
	return nil
}

// Link creates a second directory entry for an existing regular file,
// incrementing its link count. Hardlinking a directory is never
// permitted.
func (m *Mount) Link(oldpath, newpath string) error {
	oldIno, oldType, err := m.resolve(oldpath)
	if err != nil {
		return err
	}
	if oldType != FileType {
		return IsDirectory
	}

	parent, name, err := m.resolveParent(newpath)
	if err != nil {
		return err
	}
	if _, _, err := m.dirLookup(parent, name); err == nil {
		return Exists
	} else if err != NotFound {
		return err
	}

	head, err := readInode(m.dev, oldIno)
	if err != nil {
		return err
	}
	head.NLink++
	if err := writeInode(m.dev, oldIno, head); err != nil {
		return err
	}

	return m.dirAddEntry(parent, name, oldIno, FileType)
}

// Truncate resolves path and resizes the file to size 0, freeing
// whatever data blocks are no longer needed. Independent of any open
// handle.
func (m *Mount) Truncate(path string) error {
	ino, typ, err := m.resolve(path)
	if err != nil {
		return err
	}
	if typ != FileType {
		return IsDirectory
	}

	chain, err := m.buildChain(ino)
	if err != nil {
		return err
	}
	if err := m.truncateToBlocks(&chain, 0); err != nil {
		return err
	}

	head, err := readInode(m.dev, ino)
	if err != nil {
		return err
	}
	head.Size = 0
	return writeInode(m.dev, ino, head)
}

// Rename moves the entry at oldpath to newpath, atomically replacing an
// existing regular file at newpath but refusing to replace a
// non-empty directory.
func (m *Mount) Rename(oldpath, newpath string) error {
	oldParent, oldName, err := m.resolveParent(oldpath)
	if err != nil {
		return err
	}
	srcIno, srcType, err := m.dirLookup(oldParent, oldName)
	if err != nil {
		return err
	}

	newParent, newName, err := m.resolveParent(newpath)
	if err != nil {
		return err
	}

	dstIno, dstType, err := m.dirLookup(newParent, newName)
	if err == nil {
		if dstType == DirType {
			if srcType != DirType {
				return IsDirectory
			}
			count, err := m.dirEntryCount(dstIno)
			if err != nil {
				return err
			}
			if count > 2 {
				return NotEmpty
			}
		} else if srcType == DirType {
			return NotDirectory
		}

		if err := m.dirRemoveEntry(newParent, newName); err != nil {
			return err
		}
		if dstType == FileType {
			head, err := readInode(m.dev, dstIno)
			if err != nil {
				return err
			}
			head.NLink--
			if err := writeInode(m.dev, dstIno, head); err != nil {
				return err
			}
			if head.NLink == 0 {
				if err := m.markPendingDelete(dstIno); err != nil {
					return err
				}
			}
		} else {
			if err := m.markPendingDelete(dstIno); err != nil {
				return err
			}
		}
	} else if err != NotFound {
		return err
	}

	if err := m.dirAddEntry(newParent, newName, srcIno, srcType); err != nil {
		return err
	}
	if err := m.dirRemoveEntry(oldParent, oldName); err != nil {
		return err
	}

	if srcType == DirType {
		return m.dirSetParent(srcIno, newParent)
	}
	return nil
}

// dirSetParent rewrites a directory's ".." entry after it's been moved
// to a new parent.
func (m *Mount) dirSetParent(dirIno, newParent uint32) error {
	chain, size, err := m.dirChainAndSize(dirIno)
	if err != nil {
		return err
	}
	var dotdot dirent
	dotdot.InodeNumber = newParent
	dotdot.Type = DirType
	setDirentName(&dotdot, "..")
	_, _, err = m.writeAt(&chain, size, DirentSize, dotdot.marshal())
	return err
}
