package biff

import (
	"crypto/md5"
	"crypto/rc4"
	"crypto/subtle"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// DefaultPassword is what Excel uses for workbooks that are only write-protected.
const DefaultPassword = "VelvetSweatshop"

const (
	rc4BlockSize      = 1024
	maxPasswordLength = 255
)

// rc4Cipher produces the BIFF8 RC4 key stream as a function of the absolute
// stream position. The key is re-derived for every 1024-byte block.
type rc4Cipher struct {
	keyBase [5]byte
	block   int64
	ks      *rc4.Cipher
	pos     int64
}

// deriveRC4Key computes the 40-bit base key from a password and the document salt.
func deriveRC4Key(password string, salt [16]byte) [5]byte {
	units := stringUnits(password)
	if len(units) > maxPasswordLength {
		units = units[:maxPasswordLength]
	}
	pw := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(pw[2*i:], u)
	}
	h0 := md5.Sum(pw)
	d := md5.New()
	for i := 0; i < 16; i++ {
		d.Write(h0[:5])
		d.Write(salt[:])
	}
	var h1 [md5.Size]byte
	d.Sum(h1[:0])

	var base [5]byte
	copy(base[:], h1[:5])
	clear(pw)
	clear(h0[:])
	clear(h1[:])
	return base
}

func newRC4Cipher(keyBase [5]byte) *rc4Cipher {
	return &rc4Cipher{keyBase: keyBase, block: -1}
}

func (c *rc4Cipher) blockKey(block int64) [md5.Size]byte {
	var buf [9]byte
	copy(buf[:5], c.keyBase[:])
	binary.LittleEndian.PutUint32(buf[5:], uint32(block))
	key := md5.Sum(buf[:])
	clear(buf[:])
	return key
}

func (c *rc4Cipher) newStream(block int64) *rc4.Cipher {
	key := c.blockKey(block)
	// rc4.NewCipher only fails for keys outside 1..256 bytes
	ks, _ := rc4.NewCipher(key[:])
	clear(key[:])
	return ks
}

func (c *rc4Cipher) rekey(block int64) {
	if c.ks != nil {
		c.ks.Reset()
	}
	c.ks = c.newStream(block)
	c.block = block
	c.pos = block * rc4BlockSize
}

// xorAt applies the key stream for absolute positions [pos, pos+len(buf)) in place.
func (c *rc4Cipher) xorAt(buf []byte, pos int64) {
	var scratch [rc4BlockSize]byte
	for len(buf) > 0 {
		block := pos / rc4BlockSize
		if c.ks == nil || block != c.block || pos < c.pos {
			c.rekey(block)
		}
		if skip := pos - c.pos; skip > 0 {
			c.ks.XORKeyStream(scratch[:skip], scratch[:skip])
			c.pos = pos
		}
		n := int((block+1)*rc4BlockSize - pos)
		if n > len(buf) {
			n = len(buf)
		}
		c.ks.XORKeyStream(buf[:n], buf[:n])
		buf = buf[n:]
		pos += int64(n)
		c.pos = pos
	}
}

// verify checks the encrypted verifier pair stored in FILEPASS.
func (c *rc4Cipher) verify(encVerifier, encVerifierHash [16]byte) bool {
	ks := c.newStream(0)
	defer ks.Reset()

	var verifier, hash [16]byte
	ks.XORKeyStream(verifier[:], encVerifier[:])
	ks.XORKeyStream(hash[:], encVerifierHash[:])
	sum := md5.Sum(verifier[:])
	ok := subtle.ConstantTimeCompare(sum[:], hash[:]) == 1
	clear(verifier[:])
	clear(hash[:])
	return ok
}

// zero drops all key material.
func (c *rc4Cipher) zero() {
	clear(c.keyBase[:])
	if c.ks != nil {
		c.ks.Reset()
		c.ks = nil
	}
	c.block = -1
}

func isNeverEncrypted(sid uint16) bool {
	switch sid {
	case XL_BOF, XL_FILEPASS, XL_INTERFACEHDR, XL_USREXCL, XL_FILELOCK, XL_RRDINFO, XL_RRDHEAD:
		return true
	}
	return false
}

// cryptRecordPayload applies the key stream to the encrypted part of one
// physical record whose payload starts at stream offset pos.
func cryptRecordPayload(c *rc4Cipher, sid uint16, payload []byte, pos int64) {
	if isNeverEncrypted(sid) {
		return
	}
	skip := 0
	if sid == XL_BOUNDSHEET {
		// lbPlyPos stays readable so sheets can be located without the key
		skip = 4
		if skip > len(payload) {
			skip = len(payload)
		}
	}
	c.xorAt(payload[skip:], pos+int64(skip))
}

// unlockFilePass derives and validates the key described by a FILEPASS record.
func unlockFilePass(fp *FilePassRecord, password string) (*rc4Cipher, error) {
	if !fp.IsRC4() {
		return nil, errors.Wrapf(ErrUnsupportedEncryption, "encryption type %d version %d.%d",
			fp.EncryptionType, fp.MajorVersion, fp.MinorVersion)
	}
	if password == "" {
		password = DefaultPassword
	}
	c := newRC4Cipher(deriveRC4Key(password, fp.Salt))
	if !c.verify(fp.EncryptedVerifier, fp.EncryptedVerifierHash) {
		c.zero()
		if password == DefaultPassword {
			return nil, NewAuthError("workbook is encrypted with a user password")
		}
		return nil, NewAuthError("password does not match the workbook verifier")
	}
	return c, nil
}

// newRC4FilePass creates a FILEPASS record and the matching cipher for password.
func newRC4FilePass(password string, random io.Reader) (*FilePassRecord, *rc4Cipher, error) {
	var salt, verifier [16]byte
	if _, err := io.ReadFull(random, salt[:]); err != nil {
		return nil, nil, errors.Wrap(err, "generate salt")
	}
	if _, err := io.ReadFull(random, verifier[:]); err != nil {
		return nil, nil, errors.Wrap(err, "generate verifier")
	}
	c := newRC4Cipher(deriveRC4Key(password, salt))

	hash := md5.Sum(verifier[:])
	ks := c.newStream(0)
	fp := &FilePassRecord{
		EncryptionType: filePassRC4,
		MajorVersion:   1,
		MinorVersion:   1,
		Salt:           salt,
	}
	ks.XORKeyStream(fp.EncryptedVerifier[:], verifier[:])
	ks.XORKeyStream(fp.EncryptedVerifierHash[:], hash[:])
	ks.Reset()
	clear(verifier[:])
	clear(hash[:])
	return fp, c, nil
}
