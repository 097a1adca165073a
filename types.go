package efs

import "encoding/binary"

// Fixed geometry constants, per the data model.
const (
	BlockSize    = 512
	KeySize      = 32
	PathMax      = 256
	FilenameMax  = 64
	DirectBlocks = 112

	superblockMagic = 0x45465331 // "EFS1"
	inodeMagic      = 0x494e4f44 // "INOD"
	fsVersion       = 1
)

var byteOrder = binary.LittleEndian

// Block is the value type every block device passes around: exactly
// BlockSize bytes, read and written whole.
type Block [BlockSize]byte

// Superblock occupies block 0 of a formatted volume.
type Superblock struct {
	Magic        uint32
	TotalBlocks  uint32
	BitmapStart  uint32
	BitmapBlocks uint32
	DataStart    uint32
	RootIno      uint32
	Version      uint32
}

func (s *Superblock) marshal() *Block {
	var b Block
	w := b[:0]
	put32 := func(v uint32) { w = byteOrder.AppendUint32(w, v) }
	put32(s.Magic)
	put32(s.TotalBlocks)
	put32(s.BitmapStart)
	put32(s.BitmapBlocks)
	put32(s.DataStart)
	put32(s.RootIno)
	put32(s.Version)
	return &b
}

func (s *Superblock) unmarshal(b *Block) {
	buf := b[:]
	get32 := func() uint32 {
		v := byteOrder.Uint32(buf)
		buf = buf[4:]
		return v
	}
	s.Magic = get32()
	s.TotalBlocks = get32()
	s.BitmapStart = get32()
	s.BitmapBlocks = get32()
	s.DataStart = get32()
	s.RootIno = get32()
	s.Version = get32()
}

// onDiskInode is the fixed binary layout of one inode block. It doubles
// as an extension record: an extension inode only ever uses Magic and
// DirectBlocks/NextInode, the rest stay zeroed.
type onDiskInode struct {
	Magic       uint32
	Mode        uint32
	Uid         uint32
	Gid         uint32
	Size        uint64
	NLink       uint32
	Atime       uint32
	Mtime       uint32
	Ctime       uint32
	NextInode   uint32
	DirectBlock [DirectBlocks]uint32
}

func (i *onDiskInode) marshal() *Block {
	var b Block
	w := b[:0]
	w = byteOrder.AppendUint32(w, i.Magic)
	w = byteOrder.AppendUint32(w, i.Mode)
	w = byteOrder.AppendUint32(w, i.Uid)
	w = byteOrder.AppendUint32(w, i.Gid)
	w = byteOrder.AppendUint64(w, i.Size)
	w = byteOrder.AppendUint32(w, i.NLink)
	w = byteOrder.AppendUint32(w, i.Atime)
	w = byteOrder.AppendUint32(w, i.Mtime)
	w = byteOrder.AppendUint32(w, i.Ctime)
	w = byteOrder.AppendUint32(w, i.NextInode)
	for _, d := range i.DirectBlock {
		w = byteOrder.AppendUint32(w, d)
	}
	return &b
}

func (i *onDiskInode) unmarshal(b *Block) {
	buf := b[:]
	get32 := func() uint32 {
		v := byteOrder.Uint32(buf)
		buf = buf[4:]
		return v
	}
	get64 := func() uint64 {
		v := byteOrder.Uint64(buf)
		buf = buf[8:]
		return v
	}
	i.Magic = get32()
	i.Mode = get32()
	i.Uid = get32()
	i.Gid = get32()
	i.Size = get64()
	i.NLink = get32()
	i.Atime = get32()
	i.Mtime = get32()
	i.Ctime = get32()
	i.NextInode = get32()
	for n := range i.DirectBlock {
		i.DirectBlock[n] = get32()
	}
}

// DirentSize is the fixed width of a directory entry; it divides
// BlockSize evenly so directories can be grown and scanned one block at
// a time.
const DirentSize = 128

// dirent is one packed directory entry. InodeNumber == 0 marks an empty,
// reusable slot (see spec invariant 4).
type dirent struct {
	InodeNumber uint32
	Type        Type
	Name        [FilenameMax]byte
}

func (d *dirent) marshal() []byte {
	buf := make([]byte, DirentSize)
	byteOrder.PutUint32(buf[0:4], d.InodeNumber)
	buf[4] = byte(d.Type)
	copy(buf[8:8+FilenameMax], d.Name[:])
	return buf
}

func (d *dirent) unmarshal(buf []byte) {
	d.InodeNumber = byteOrder.Uint32(buf[0:4])
	d.Type = Type(buf[4])
	copy(d.Name[:], buf[8:8+FilenameMax])
}

func (d *dirent) name() string {
	n := 0
	for n < len(d.Name) && d.Name[n] != 0 {
		n++
	}
	return string(d.Name[:n])
}

func setDirentName(d *dirent, name string) {
	var buf [FilenameMax]byte
	copy(buf[:], name)
	d.Name = buf
}
