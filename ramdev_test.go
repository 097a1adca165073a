package efs

import "testing"

func TestRAMBlockDeviceRoundtrip(t *testing.T) {
	dev := NewRAMBlockDevice(4)

	var blk Block
	copy(blk[:], "hello world")
	if err := dev.Put(2, &blk); err != nil {
		t.Fatalf("Put failed: %s", err)
	}

	got, err := dev.Get(2)
	if err != nil {
		t.Fatalf("Get failed: %s", err)
	}
	if string(got[:11]) != "hello world" {
		t.Errorf("got %q, want %q", got[:11], "hello world")
	}
}

func TestRAMBlockDeviceOutOfRange(t *testing.T) {
	dev := NewRAMBlockDevice(2)

	if _, err := dev.Get(5); err != IO {
		t.Errorf("Get(5) on 2-block device: got %v, want IO", err)
	}

	var blk Block
	if err := dev.Put(5, &blk); err != IO {
		t.Errorf("Put(5) on 2-block device: got %v, want IO", err)
	}
}

func TestRAMBlockDeviceRefcount(t *testing.T) {
	dev := NewRAMBlockDevice(1)
	dev.AddRef()

	if err := dev.Release(); err != nil {
		t.Fatalf("first Release: %s", err)
	}
	if dev.buf == nil {
		t.Errorf("buffer freed before last reference released")
	}
	if err := dev.Release(); err != nil {
		t.Fatalf("second Release: %s", err)
	}
	if dev.buf != nil {
		t.Errorf("buffer not freed after last reference released")
	}
}
