package efs

import "sync"

// MountOption configures a Mount at Initialize time, mirroring the
// functional-options style used for configuring the superblock reader
// in the teacher package.
type MountOption func(*Mount) error

// WithCacheCapacity is reserved for hosts that want to report the
// capacity of a cache layer they've already stacked beneath dev; the
// mount itself doesn't build the stack (the caller composes
// raw/cache/crypto block devices before calling Initialize). The value
// is only recorded on the Mount; nothing in this package reads it.
func WithCacheCapacity(n int) MountOption {
	return func(m *Mount) error {
		m.cacheHint = n
		return nil
	}
}

type handleInfo struct {
	count         int
	pendingDelete bool
}

// Mount bundles a block device with the cached superblock and the
// bookkeeping needed to defer inode release until the last open handle
// closes.
type Mount struct {
	dev BlockDevice
	sb  Superblock

	cacheHint int

	mu      sync.Mutex
	handles map[uint32]*handleInfo
}

// Mkfs formats dev to host an n-block EFS volume: it writes the
// superblock, a zeroed bitmap with the metadata bits pre-set (including
// the padding bits beyond n, so the allocator never hands those out),
// and a root directory inode containing "." and ".." entries that both
// point at the root.
func Mkfs(dev BlockDevice, n uint32) error {
	bitmapBlocks := (n + bitsPerBlock - 1) / bitsPerBlock
	dataStart := 1 + bitmapBlocks

	sb := Superblock{
		Magic:        superblockMagic,
		TotalBlocks:  n,
		BitmapStart:  1,
		BitmapBlocks: bitmapBlocks,
		DataStart:    dataStart,
		RootIno:      dataStart,
		Version:      fsVersion,
	}

	// Zero every bitmap block, then pre-set bits for the superblock,
	// the bitmap region itself, and whatever lies at or past n (padding
	// bits in the final bitmap block that don't correspond to a real
	// block).
	for i := uint32(0); i < bitmapBlocks; i++ {
		var blk Block
		for bit := uint32(0); bit < bitsPerBlock; bit++ {
			blkno := i*bitsPerBlock + bit
			if blkno < dataStart || blkno >= n {
				setBit(&blk, bit)
			}
		}
		if err := dev.Put(1+i, &blk); err != nil {
			return IO
		}
	}

	// Root inode occupies the first data block, so its bit must be
	// marked used too.
	{
		blockIdx, bit := bitmapBlockOf(dataStart)
		blk, err := dev.Get(1 + blockIdx)
		if err != nil {
			return IO
		}
		setBit(blk, bit)
		if err := dev.Put(1+blockIdx, blk); err != nil {
			return IO
		}
	}

	if err := dev.Put(0, sb.marshal()); err != nil {
		return IO
	}

	rootInode := &onDiskInode{
		Magic: inodeMagic,
		Mode:  DefaultDirMode,
		NLink: 1,
	}
	if err := writeInode(dev, dataStart, rootInode); err != nil {
		return err
	}

	m := &Mount{dev: dev, sb: sb, handles: make(map[uint32]*handleInfo)}
	return m.initDirectory(dataStart, dataStart)
}

// Initialize verifies dev's superblock and returns a usable mount.
func Initialize(dev BlockDevice, opts ...MountOption) (*Mount, error) {
	blk, err := dev.Get(0)
	if err != nil {
		return nil, IO
	}

	var sb Superblock
	sb.unmarshal(blk)
	if sb.Magic != superblockMagic {
		return nil, Corrupt
	}
	if sb.TotalBlocks == 0 {
		return nil, Corrupt
	}

	dev.AddRef()
	m := &Mount{dev: dev, sb: sb, handles: make(map[uint32]*handleInfo)}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			dev.Release()
			return nil, err
		}
	}

	return m, nil
}

// Release releases the mount's reference to its block device. Callers
// must close every open File/Dir handle first; Release does not check
// for leaked handles beyond what's documented in the concurrency model.
func (m *Mount) Release() error {
	return m.dev.Release()
}

func (m *Mount) acquireHandle(ino uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[ino]
	if !ok {
		h = &handleInfo{}
		m.handles[ino] = h
	}
	h.count++
}

// releaseHandle drops one reference to ino's open-handle count. If it
// was the last handle and the inode was marked for deferred delete
// (nlinks reached zero while still open), this is where the chain and
// its data blocks actually get freed.
func (m *Mount) releaseHandle(ino uint32) error {
	m.mu.Lock()
	h, ok := m.handles[ino]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	h.count--
	pending := h.pendingDelete
	last := h.count <= 0
	if last {
		delete(m.handles, ino)
	}
	m.mu.Unlock()

	if last && pending {
		chain, err := m.buildChain(ino)
		if err != nil {
			return err
		}
		return m.releaseInode(chain)
	}
	return nil
}

// markPendingDelete records that ino's link count has reached zero. If
// no handle currently holds it open, the inode is released immediately;
// otherwise release is deferred to the last Close.
func (m *Mount) markPendingDelete(ino uint32) error {
	m.mu.Lock()
	h, ok := m.handles[ino]
	if ok && h.count > 0 {
		h.pendingDelete = true
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	chain, err := m.buildChain(ino)
	if err != nil {
		return err
	}
	return m.releaseInode(chain)
}
