package efs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileBlockDeviceCreateAndRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol.img")

	dev, err := CreateFileBlockDevice(path, 8)
	if err != nil {
		t.Fatalf("CreateFileBlockDevice: %s", err)
	}

	var blk Block
	copy(blk[:], "persisted")
	if err := dev.Put(3, &blk); err != nil {
		t.Fatalf("Put: %s", err)
	}
	if err := dev.Release(); err != nil {
		t.Fatalf("Release: %s", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat backing file: %s", err)
	}
	if info.Size() != Size(8) {
		t.Errorf("backing file size = %d, want %d", info.Size(), Size(8))
	}

	dev2, err := OpenFileBlockDevice(path, 8)
	if err != nil {
		t.Fatalf("OpenFileBlockDevice: %s", err)
	}
	defer dev2.Release()

	got, err := dev2.Get(3)
	if err != nil {
		t.Fatalf("Get: %s", err)
	}
	if string(got[:9]) != "persisted" {
		t.Errorf("got %q, want %q", got[:9], "persisted")
	}
}

func TestFileBlockDeviceExclusiveLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol.img")

	dev, err := CreateFileBlockDevice(path, 4)
	if err != nil {
		t.Fatalf("CreateFileBlockDevice: %s", err)
	}
	defer dev.Release()

	if _, err := OpenFileBlockDevice(path, 4); err == nil {
		t.Errorf("expected second open of a locked volume to fail")
	}
}

func TestFileBlockDeviceOutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol.img")

	dev, err := CreateFileBlockDevice(path, 2)
	if err != nil {
		t.Fatalf("CreateFileBlockDevice: %s", err)
	}
	defer dev.Release()

	if _, err := dev.Get(2); err != IO {
		t.Errorf("Get(2) on 2-block device: got %v, want IO", err)
	}
}
