package efs

// Open mode flags recognised by Mount.Open, per the data model's open
// modes.
const (
	OpenCreate = 1 << iota // create if absent
	OpenExcl               // fail if exists, only meaningful with OpenCreate
	OpenTrunc               // truncate on open
	OpenAppend              // seek to end before each write
)

// Whence values for File.Seek.
const (
	SeekSet = iota
	SeekCur
	SeekEnd
)

// File is an open handle on a regular file. (The directory layer does
// not use File; it calls readAt/writeAt on a directory's chain
// directly.) It holds the cached inode chain for its lifetime, rebuilt
// on open and never consulted by any other handle.
type File struct {
	mnt    *Mount
	ino    uint32
	chain  []uint32
	size   uint64
	mode   uint32
	offset int64
	isDir  bool
	append bool

	// readdir cursor: byte offset of the next entry to examine.
	dirCursor int64
}

// newFileHandle loads the inode at ino, builds its chain, and wraps it
// in a File. It registers the handle with the mount so a concurrent
// unlink that drops nlinks to zero can defer the actual block release
// until Close.
func (m *Mount) newFileHandle(ino uint32) (*File, error) {
	head, err := readInode(m.dev, ino)
	if err != nil {
		return nil, err
	}
	chain, err := m.buildChain(ino)
	if err != nil {
		return nil, err
	}

	f := &File{
		mnt:   m,
		ino:   ino,
		chain: chain,
		size:  head.Size,
		mode:  head.Mode,
		isDir: typeOfMode(head.Mode) == DirType,
	}
	m.acquireHandle(ino)
	return f, nil
}

// Read reads up to len(buf) bytes starting at the current offset,
// returning the actual number of bytes read (possibly 0 at EOF).
func (f *File) Read(buf []byte) (int, error) {
	if f.isDir {
		return 0, IsDirectory
	}
	n, err := f.mnt.readAt(f.chain, f.size, f.offset, buf)
	f.offset += int64(n)
	return n, err
}

// Write writes buf starting at the current offset, extending the file
// (allocating new data blocks) as needed. APPEND-opened handles always
// write at the current end of file.
func (f *File) Write(buf []byte) (int, error) {
	if f.isDir {
		return 0, IsDirectory
	}
	if f.append {
		f.offset = int64(f.size)
	}

	n, newSize, err := f.mnt.writeAt(&f.chain, f.size, f.offset, buf)
	f.size = newSize
	f.offset += int64(n)
	if err != nil {
		return n, err
	}

	head, err := readInode(f.mnt.dev, f.ino)
	if err != nil {
		return n, err
	}
	head.Size = f.size
	if err := writeInode(f.mnt.dev, f.ino, head); err != nil {
		return n, IO
	}
	return n, nil
}

// Seek repositions the handle's offset. Seeking past end of file is
// permitted; the gap reads back as zero and is realised as allocated
// zero-filled blocks only once something is actually written there.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = f.offset
	case SeekEnd:
		base = int64(f.size)
	default:
		return 0, InvalidArg
	}

	newOffset := base + offset
	if newOffset < 0 {
		return 0, InvalidArg
	}
	f.offset = newOffset
	return f.offset, nil
}

// Close releases the handle. If the file's link count has already
// dropped to zero, this may be the last handle and therefore finally
// frees the inode chain and its data blocks (deferred delete).
func (f *File) Close() error {
	return f.mnt.releaseHandle(f.ino)
}

// readAt is the shared read path used by both regular files and,
// internally, by the directory layer scanning dirents.
func (m *Mount) readAt(chain []uint32, size uint64, offset int64, buf []byte) (int, error) {
	if offset < 0 {
		return 0, InvalidArg
	}
	if uint64(offset) >= size {
		return 0, nil
	}

	remaining := size - uint64(offset)
	if uint64(len(buf)) > remaining {
		buf = buf[:remaining]
	}

	total := 0
	for total < len(buf) {
		cur := offset + int64(total)
		logical := uint32(cur / BlockSize)
		inBlock := int(cur % BlockSize)

		dataBlkno, err := m.blockAt(chain, logical)
		if err != nil {
			return total, err
		}

		n := BlockSize - inBlock
		if n > len(buf)-total {
			n = len(buf) - total
		}

		if dataBlkno == 0 {
			// Sparse region: reads back as zero.
			for i := 0; i < n; i++ {
				buf[total+i] = 0
			}
		} else {
			blk, err := m.dev.Get(dataBlkno)
			if err != nil {
				return total, IO
			}
			copy(buf[total:total+n], blk[inBlock:inBlock+n])
		}

		total += n
	}

	return total, nil
}

// writeAt is the shared write path used by both regular files and the
// directory layer. It returns the bytes written and the file's new
// size (max(old size, offset+written)).
func (m *Mount) writeAt(chain *[]uint32, size uint64, offset int64, buf []byte) (int, uint64, error) {
	if offset < 0 {
		return 0, size, InvalidArg
	}

	total := 0
	for total < len(buf) {
		cur := offset + int64(total)
		logical := uint32(cur / BlockSize)
		inBlock := int(cur % BlockSize)

		n := BlockSize - inBlock
		if n > len(buf)-total {
			n = len(buf) - total
		}

		dataBlkno, err := m.blockAt(*chain, logical)
		if err != nil {
			return total, size, err
		}

		var blk Block
		if n < BlockSize {
			// Partial-block write: read-modify-write.
			if dataBlkno != 0 {
				existing, err := m.dev.Get(dataBlkno)
				if err != nil {
					return total, size, IO
				}
				blk = *existing
			}
		}
		copy(blk[inBlock:inBlock+n], buf[total:total+n])

		if dataBlkno == 0 {
			dataBlkno, err = m.allocateBlock()
			if err != nil {
				return total, size, err
			}
			if err := m.assignBlock(chain, logical, dataBlkno); err != nil {
				return total, size, err
			}
		}

		if err := m.dev.Put(dataBlkno, &blk); err != nil {
			return total, size, IO
		}

		total += n
	}

	newSize := size
	if end := uint64(offset) + uint64(total); end > newSize {
		newSize = end
	}
	return total, newSize, nil
}
