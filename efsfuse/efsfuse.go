//go:build fuse

// Package efsfuse adapts a mounted efs volume to the host filesystem via
// go-fuse, the way squashfs's inode_fuse.go adapts its own read-only
// inode to the same library — except here every node embedder wraps a
// live efs.Mount instead of a byte-range reader, so writes actually flow
// back into the volume.
package efsfuse

import (
	"context"
	"syscall"
	"time"

	"github.com/efslib/efs"
	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Node is the InodeEmbedder for one efs path. It re-resolves its path
// against the mount on every operation rather than caching an open
// handle, since efs itself tracks handle lifetime separately (see
// efs.Mount's deferred-delete bookkeeping).
type Node struct {
	gofs.Inode
	mnt  *efs.Mount
	path string
}

var (
	_ gofs.NodeGetattrer = (*Node)(nil)
	_ gofs.NodeLookuper  = (*Node)(nil)
	_ gofs.NodeReaddirer = (*Node)(nil)
	_ gofs.NodeMkdirer   = (*Node)(nil)
	_ gofs.NodeCreater   = (*Node)(nil)
	_ gofs.NodeUnlinker  = (*Node)(nil)
	_ gofs.NodeRmdirer   = (*Node)(nil)
	_ gofs.NodeOpener    = (*Node)(nil)
)

// Root returns the InodeEmbedder to pass to gofs.Mount for volume's root
// directory.
func Root(mnt *efs.Mount) gofs.InodeEmbedder {
	return &Node{mnt: mnt, path: "/"}
}

func join(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

func errnoOf(err error) syscall.Errno {
	switch err {
	case nil:
		return 0
	case efs.ErrNotFound:
		return syscall.ENOENT
	case efs.ErrExists:
		return syscall.EEXIST
	case efs.ErrNotDirectory:
		return syscall.ENOTDIR
	case efs.ErrIsDirectory:
		return syscall.EISDIR
	case efs.ErrNotEmpty:
		return syscall.ENOTEMPTY
	case efs.ErrNoSpace:
		return syscall.ENOSPC
	case efs.ErrInvalidArg:
		return syscall.EINVAL
	case efs.ErrIO:
		return syscall.EIO
	case efs.ErrCorrupt:
		return syscall.EIO
	default:
		return syscall.EIO
	}
}

func fillAttr(st *efs.Stat, out *fuse.Attr) {
	out.Ino = uint64(st.Ino)
	out.Mode = st.Mode
	out.Nlink = st.NLink
	out.Size = st.Size
	out.Blksize = st.Blksize
	out.Blocks = st.Blocks
	out.SetTimes(nil, nil, nil)
}

func (n *Node) Getattr(ctx context.Context, f gofs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, err := n.mnt.Stat(n.path)
	if err != nil {
		return errnoOf(err)
	}
	fillAttr(st, &out.Attr)
	out.SetTimeout(time.Second)
	return 0
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	childPath := join(n.path, name)
	st, err := n.mnt.Stat(childPath)
	if err != nil {
		return nil, errnoOf(err)
	}
	fillAttr(st, &out.Attr)
	child := &Node{mnt: n.mnt, path: childPath}
	stable := gofs.StableAttr{Mode: st.Mode, Ino: uint64(st.Ino)}
	return n.NewInode(ctx, child, stable), 0
}

// dirStream prefetches one entry at a time so HasNext can report
// end-of-stream accurately instead of relying on a sentinel entry.
type dirStream struct {
	dir     *efs.Dir
	next    *efs.DirEntry
	nextErr error
	fetched bool
}

func (s *dirStream) fetch() {
	if s.fetched {
		return
	}
	s.next, s.nextErr = s.dir.Readdir()
	s.fetched = true
}

func (s *dirStream) HasNext() bool {
	s.fetch()
	return s.nextErr == nil && s.next != nil
}

func (s *dirStream) Next() (fuse.DirEntry, syscall.Errno) {
	s.fetch()
	ent, err := s.next, s.nextErr
	s.fetched = false
	if err != nil {
		return fuse.DirEntry{}, errnoOf(err)
	}
	mode := uint32(syscall.S_IFREG)
	if ent.Type.IsDir() {
		mode = syscall.S_IFDIR
	}
	return fuse.DirEntry{Ino: uint64(ent.Ino), Mode: mode, Name: ent.Name}, 0
}

func (s *dirStream) Close() { s.dir.Closedir() }

func (n *Node) Readdir(ctx context.Context) (gofs.DirStream, syscall.Errno) {
	d, err := n.mnt.Opendir(n.path)
	if err != nil {
		return nil, errnoOf(err)
	}
	return &dirStream{dir: d}, 0
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	childPath := join(n.path, name)
	if err := n.mnt.Mkdir(childPath, mode&0777); err != nil {
		return nil, errnoOf(err)
	}
	return n.Lookup(ctx, name, out)
}

type fileHandle struct {
	f *efs.File
}

var (
	_ gofs.FileReader = (*fileHandle)(nil)
	_ gofs.FileWriter = (*fileHandle)(nil)
)

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if _, err := h.f.Seek(off, efs.SeekSet); err != nil {
		return nil, errnoOf(err)
	}
	n, err := h.f.Read(dest)
	if err != nil {
		return nil, errnoOf(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	if _, err := h.f.Seek(off, efs.SeekSet); err != nil {
		return 0, errnoOf(err)
	}
	n, err := h.f.Write(data)
	if err != nil {
		return uint32(n), errnoOf(err)
	}
	return uint32(n), 0
}

func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofs.Inode, gofs.FileHandle, uint32, syscall.Errno) {
	childPath := join(n.path, name)
	f, err := n.mnt.Create(childPath, mode&0777)
	if err != nil {
		return nil, nil, 0, errnoOf(err)
	}

	st, err := n.mnt.Stat(childPath)
	if err != nil {
		f.Close()
		return nil, nil, 0, errnoOf(err)
	}
	fillAttr(st, &out.Attr)

	child := &Node{mnt: n.mnt, path: childPath}
	stable := gofs.StableAttr{Mode: st.Mode, Ino: uint64(st.Ino)}
	inode := n.NewInode(ctx, child, stable)
	return inode, &fileHandle{f: f}, 0, 0
}

func (n *Node) Open(ctx context.Context, flags uint32) (gofs.FileHandle, uint32, syscall.Errno) {
	f, err := n.mnt.Open(n.path, 0, 0)
	if err != nil {
		return nil, 0, errnoOf(err)
	}
	return &fileHandle{f: f}, 0, 0
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return errnoOf(n.mnt.Unlink(join(n.path, name)))
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return errnoOf(n.mnt.Rmdir(join(n.path, name)))
}

// Mount mounts an efs volume at dir using the default go-fuse server
// loop, returning the running server the way gofs.Mount itself does.
func Mount(dir string, mnt *efs.Mount, options *gofs.Options) (*fuse.Server, error) {
	return gofs.Mount(dir, Root(mnt), options)
}
