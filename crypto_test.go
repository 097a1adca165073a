package efs

import "testing"

func TestCryptoBlockDeviceRoundtrip(t *testing.T) {
	lower := NewRAMBlockDevice(4)
	var key [KeySize]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")

	enc, err := NewCryptoBlockDevice(lower, key)
	if err != nil {
		t.Fatalf("NewCryptoBlockDevice: %s", err)
	}
	defer enc.Release()

	var blk Block
	copy(blk[:], "top secret payload")
	if err := enc.Put(0, &blk); err != nil {
		t.Fatalf("Put: %s", err)
	}

	got, err := enc.Get(0)
	if err != nil {
		t.Fatalf("Get: %s", err)
	}
	if string(got[:18]) != "top secret payload" {
		t.Errorf("got %q, want %q", got[:18], "top secret payload")
	}

	raw, err := lower.Get(0)
	if err != nil {
		t.Fatalf("lower.Get: %s", err)
	}
	if string(raw[:18]) == "top secret payload" {
		t.Errorf("plaintext found on the underlying device")
	}
}

func TestCryptoBlockDeviceTamperDetection(t *testing.T) {
	lower := NewRAMBlockDevice(4)
	var key [KeySize]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")

	enc, err := NewCryptoBlockDevice(lower, key)
	if err != nil {
		t.Fatalf("NewCryptoBlockDevice: %s", err)
	}
	defer enc.Release()

	var blk Block
	copy(blk[:], "authentic")
	if err := enc.Put(0, &blk); err != nil {
		t.Fatalf("Put: %s", err)
	}

	raw, err := lower.Get(0)
	if err != nil {
		t.Fatalf("lower.Get: %s", err)
	}
	raw[0] ^= 0xff
	if err := lower.Put(0, raw); err != nil {
		t.Fatalf("lower.Put: %s", err)
	}

	if _, err := enc.Get(0); err != IO {
		t.Errorf("Get after tampering: got %v, want IO", err)
	}
}

func TestCryptoBlockDeviceWrongKey(t *testing.T) {
	lower := NewRAMBlockDevice(4)
	var key1, key2 [KeySize]byte
	copy(key1[:], "0123456789abcdef0123456789abcdef")
	copy(key2[:], "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")

	enc1, err := NewCryptoBlockDevice(lower, key1)
	if err != nil {
		t.Fatalf("NewCryptoBlockDevice: %s", err)
	}
	defer enc1.Release()

	var blk Block
	copy(blk[:], "payload")
	if err := enc1.Put(0, &blk); err != nil {
		t.Fatalf("Put: %s", err)
	}

	lower.AddRef()
	enc2, err := NewCryptoBlockDevice(lower, key2)
	if err != nil {
		t.Fatalf("NewCryptoBlockDevice: %s", err)
	}
	defer enc2.Release()

	if _, err := enc2.Get(0); err != IO {
		t.Errorf("Get with wrong key: got %v, want IO", err)
	}
}
