package efs

import "sync/atomic"

// BlockDevice is the uniform, stackable capability every backend and
// wrapper implements: get/put a whole block, plus reference-counted
// lifecycle. Implementations are synchronous; there is no asynchronous
// completion model anywhere in the stack.
type BlockDevice interface {
	Get(blkno uint32) (*Block, error)
	Put(blkno uint32, blk *Block) error
	AddRef()
	Release() error
}

// refcount is the embeddable reference-counting helper every backend and
// wrapper uses, mirroring the "add_ref/release cascades" contract from
// the block-device stacking notes: the last Release tears down the
// backing resource.
type refcount struct {
	n int64
}

func (r *refcount) AddRef() {
	atomic.AddInt64(&r.n, 1)
}

// release decrements the count and reports whether this was the final
// reference (the caller should then free backing resources).
func (r *refcount) release() bool {
	return atomic.AddInt64(&r.n, -1) <= 0
}
