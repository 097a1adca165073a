package efs

import (
	"io"
	"os"

	"github.com/google/renameio"
	"golang.org/x/sys/unix"
)

// FileBlockDevice is a host-file-backed block device. Reads and writes
// are positioned (no shared offset), and a short read/write is treated
// as an I/O error rather than silently returning a partial result.
type FileBlockDevice struct {
	refcount
	f      *os.File
	blocks uint32
	locked bool
}

var _ BlockDevice = (*FileBlockDevice)(nil)

// OpenFileBlockDevice opens an existing host file sized to n*BlockSize
// bytes and takes an exclusive flock on it for the lifetime of the
// device, enforcing the single-mount-owner model from the concurrency
// section.
func OpenFileBlockDevice(path string, n uint32) (*FileBlockDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, err
	}
	d := &FileBlockDevice{f: f, blocks: n, locked: true}
	d.AddRef()
	return d, nil
}

// CreateFileBlockDevice creates a new host file sized to n*BlockSize
// zero bytes, atomically: a concurrent reader of path never observes a
// partially-written file, since the contents land via a temp file and
// rename(2). The returned device owns an exclusive flock, same as
// OpenFileBlockDevice.
func CreateFileBlockDevice(path string, n uint32) (*FileBlockDevice, error) {
	zero := make([]byte, int(n)*BlockSize)
	if err := renameio.WriteFile(path, zero, 0600); err != nil {
		return nil, err
	}
	return OpenFileBlockDevice(path, n)
}

// Size returns the exact byte count a host file must provide to back an
// n-block volume.
func Size(n uint32) int64 {
	return int64(n) * BlockSize
}

func (d *FileBlockDevice) Get(blkno uint32) (*Block, error) {
	if blkno >= d.blocks {
		return nil, IO
	}
	var b Block
	n, err := d.f.ReadAt(b[:], int64(blkno)*BlockSize)
	if err != nil && err != io.EOF {
		return nil, IO
	}
	if n != BlockSize {
		return nil, IO
	}
	return &b, nil
}

func (d *FileBlockDevice) Put(blkno uint32, blk *Block) error {
	if blkno >= d.blocks {
		return IO
	}
	n, err := d.f.WriteAt(blk[:], int64(blkno)*BlockSize)
	if err != nil {
		return IO
	}
	if n != BlockSize {
		return IO
	}
	return nil
}

// Release flushes pending host writes, drops the flock, and closes the
// file on the last reference.
func (d *FileBlockDevice) Release() error {
	if !d.release() {
		return nil
	}
	err := unix.Fsync(int(d.f.Fd()))
	if d.locked {
		unix.Flock(int(d.f.Fd()), unix.LOCK_UN)
		d.locked = false
	}
	if cerr := d.f.Close(); err == nil {
		err = cerr
	}
	return err
}
