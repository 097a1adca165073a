package efs

import "testing"

func TestCacheBlockDeviceWriteThrough(t *testing.T) {
	lower := NewRAMBlockDevice(4)
	cache := NewCacheBlockDevice(lower, 2)
	defer cache.Release()

	var blk Block
	copy(blk[:], "cached")
	if err := cache.Put(0, &blk); err != nil {
		t.Fatalf("Put: %s", err)
	}

	// The write-through contract means the lower device already has the
	// data even without going through the cache.
	got, err := lower.Get(0)
	if err != nil {
		t.Fatalf("lower.Get: %s", err)
	}
	if string(got[:6]) != "cached" {
		t.Errorf("lower device missing write-through data: got %q", got[:6])
	}
}

func TestCacheBlockDeviceEviction(t *testing.T) {
	lower := NewRAMBlockDevice(8)
	cache := NewCacheBlockDevice(lower, 2)
	defer cache.Release()

	var a, b, c Block
	copy(a[:], "a")
	copy(b[:], "b")
	copy(c[:], "c")

	cache.Put(0, &a)
	cache.Put(1, &b)
	// Touch 0 so it's most-recently-used, then push in a third entry.
	cache.Get(0)
	cache.Put(2, &c)

	if _, ok := cache.index[1]; ok {
		t.Errorf("expected block 1 to have been evicted as least-recently-used")
	}
	if _, ok := cache.index[0]; !ok {
		t.Errorf("expected block 0 to survive eviction (recently touched)")
	}
	if _, ok := cache.index[2]; !ok {
		t.Errorf("expected block 2 to be present (just inserted)")
	}
}

func TestCacheBlockDeviceGetPopulatesCache(t *testing.T) {
	lower := NewRAMBlockDevice(4)
	var blk Block
	copy(blk[:], "seed")
	lower.Put(1, &blk)

	cache := NewCacheBlockDevice(lower, 4)
	defer cache.Release()

	got, err := cache.Get(1)
	if err != nil {
		t.Fatalf("Get: %s", err)
	}
	if string(got[:4]) != "seed" {
		t.Errorf("got %q, want %q", got[:4], "seed")
	}
	if _, ok := cache.index[1]; !ok {
		t.Errorf("expected Get to populate the cache entry for block 1")
	}
}
