package efs

import (
	"crypto/cipher"
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"
)

// CryptoPayloadSize is the usable plaintext size once a block has gone
// through the crypto layer: BlockSize minus the AEAD tag. This is the
// engine's answer to the Open Question about shrinking payload — the
// underlying raw block stays exactly BlockSize, and it is the payload
// that shrinks (see SPEC_FULL.md §4.4).
const CryptoPayloadSize = BlockSize - chacha20poly1305.Overhead

// CryptoBlockDevice wraps a lower BlockDevice with per-block
// authenticated encryption. The key is supplied at mount time and never
// written to disk.
type CryptoBlockDevice struct {
	refcount
	lower BlockDevice
	aead  cipher.AEAD
}

var _ BlockDevice = (*CryptoBlockDevice)(nil)

// NewCryptoBlockDevice wraps lower with AEAD encryption keyed by key,
// which must be exactly KeySize bytes.
func NewCryptoBlockDevice(lower BlockDevice, key [KeySize]byte) (*CryptoBlockDevice, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	lower.AddRef()
	d := &CryptoBlockDevice{lower: lower, aead: aead}
	d.AddRef()
	return d, nil
}

// nonceFor derives a deterministic 12-byte nonce from a block number
// alone, so every Put to the same block number under one key uses the
// same nonce. CacheBlockDevice writes each Put through to the device
// below it, so stacking it above this layer does not merge repeat
// writes of a block.
func nonceFor(blkno uint32) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint32(nonce[chacha20poly1305.NonceSize-4:], blkno)
	return nonce
}

func aadFor(blkno uint32) []byte {
	aad := make([]byte, 4)
	binary.BigEndian.PutUint32(aad, blkno)
	return aad
}

func (d *CryptoBlockDevice) Get(blkno uint32) (*Block, error) {
	ct, err := d.lower.Get(blkno)
	if err != nil {
		return nil, err
	}

	pt, err := d.aead.Open(nil, nonceFor(blkno), ct[:], aadFor(blkno))
	if err != nil {
		// Authentication failure surfaces as an I/O error; the caller
		// never sees a partially-decrypted block.
		return nil, IO
	}

	var b Block
	copy(b[:], pt)
	return &b, nil
}

func (d *CryptoBlockDevice) Put(blkno uint32, blk *Block) error {
	pt := blk[:CryptoPayloadSize]
	ct := d.aead.Seal(nil, nonceFor(blkno), pt, aadFor(blkno))

	var out Block
	copy(out[:], ct)
	return d.lower.Put(blkno, &out)
}

func (d *CryptoBlockDevice) Release() error {
	if !d.release() {
		return nil
	}
	return d.lower.Release()
}
