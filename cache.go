package efs

import (
	"container/list"
	"sync"
)

// DefaultCacheCapacity is the number of blocks CacheBlockDevice holds
// before evicting, per the cache layer's "fixed capacity (e.g., 64
// entries)".
const DefaultCacheCapacity = 64

type cacheEntry struct {
	blkno uint32
	blk   Block
	dirty bool
}

// CacheBlockDevice is an LRU write-through cache over a lower
// BlockDevice. Put writes through to the lower device first and only
// then caches the block as a clean entry, so neither Get nor Put ever
// creates a dirty entry. The dirty flag and the flush-on-evict and
// flush-all-on-Release paths are kept to mirror the cache-layer
// contract literally; with the current Get/Put they write nothing.
type CacheBlockDevice struct {
	refcount
	mu       sync.Mutex
	lower    BlockDevice
	capacity int
	ll       *list.List // front = most recently used
	index    map[uint32]*list.Element
}

var _ BlockDevice = (*CacheBlockDevice)(nil)

// NewCacheBlockDevice wraps lower with a write-through LRU cache of the
// given capacity (DefaultCacheCapacity if capacity <= 0).
func NewCacheBlockDevice(lower BlockDevice, capacity int) *CacheBlockDevice {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	lower.AddRef()
	d := &CacheBlockDevice{
		lower:    lower,
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[uint32]*list.Element),
	}
	d.AddRef()
	return d
}

func (d *CacheBlockDevice) Get(blkno uint32) (*Block, error) {
	d.mu.Lock()
	if el, ok := d.index[blkno]; ok {
		d.ll.MoveToFront(el)
		blk := el.Value.(*cacheEntry).blk
		d.mu.Unlock()
		return &blk, nil
	}
	d.mu.Unlock()

	blk, err := d.lower.Get(blkno)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.insertLocked(blkno, blk, false)
	d.mu.Unlock()
	return blk, nil
}

func (d *CacheBlockDevice) Put(blkno uint32, blk *Block) error {
	if err := d.lower.Put(blkno, blk); err != nil {
		return err
	}

	d.mu.Lock()
	d.insertLocked(blkno, blk, false)
	d.mu.Unlock()
	return nil
}

// insertLocked adds or refreshes the cache entry for blkno, evicting the
// least-recently-used entry if the cache is now over capacity. Ties
// among equally-stale entries cannot occur under the single-writer
// model, since every access moves its entry to the front immediately.
func (d *CacheBlockDevice) insertLocked(blkno uint32, blk *Block, dirty bool) {
	if el, ok := d.index[blkno]; ok {
		ent := el.Value.(*cacheEntry)
		ent.blk = *blk
		ent.dirty = ent.dirty || dirty
		d.ll.MoveToFront(el)
		return
	}

	ent := &cacheEntry{blkno: blkno, blk: *blk, dirty: dirty}
	el := d.ll.PushFront(ent)
	d.index[blkno] = el

	for d.ll.Len() > d.capacity {
		back := d.ll.Back()
		evicted := back.Value.(*cacheEntry)
		d.ll.Remove(back)
		delete(d.index, evicted.blkno)
		if evicted.dirty {
			d.lower.Put(evicted.blkno, &evicted.blk)
		}
	}
}

// Release flushes every dirty entry to the lower device, then releases
// the lower device on the last reference.
func (d *CacheBlockDevice) Release() error {
	if !d.release() {
		return nil
	}

	d.mu.Lock()
	for el := d.ll.Front(); el != nil; el = el.Next() {
		ent := el.Value.(*cacheEntry)
		if ent.dirty {
			d.lower.Put(ent.blkno, &ent.blk)
			ent.dirty = false
		}
	}
	d.mu.Unlock()

	return d.lower.Release()
}
