package biff

// FILEPASS wEncryptionType values
const (
	filePassXOR = 0
	filePassRC4 = 1
)

// FilePassRecord describes how the rest of the stream is encrypted.
//
// Only the BIFF8 standard RC4 variant (version 1.1) is decoded into fields.
// XOR obfuscation and CryptoAPI RC4 keep their bytes in Raw.
type FilePassRecord struct {
	EncryptionType        uint16
	MajorVersion          uint16
	MinorVersion          uint16
	Salt                  [16]byte
	EncryptedVerifier     [16]byte
	EncryptedVerifierHash [16]byte
	Raw                   []byte
}

// IsRC4 reports whether the record describes standard RC4 encryption.
func (r *FilePassRecord) IsRC4() bool {
	return r.EncryptionType == filePassRC4 && r.MajorVersion == 1 && r.MinorVersion == 1
}

func readFilePassRecord(in *RecordInputStream) (Record, error) {
	r := &FilePassRecord{EncryptionType: in.ReadUShort()}
	if r.EncryptionType != filePassRC4 {
		r.Raw = in.ReadRemainder()
		return r, in.Err()
	}
	r.MajorVersion = in.ReadUShort()
	r.MinorVersion = in.ReadUShort()
	if !r.IsRC4() {
		r.Raw = in.ReadRemainder()
		return r, in.Err()
	}
	copy(r.Salt[:], in.ReadFully(16))
	copy(r.EncryptedVerifier[:], in.ReadFully(16))
	copy(r.EncryptedVerifierHash[:], in.ReadFully(16))
	return r, in.Err()
}

func (r *FilePassRecord) Sid() uint16 { return XL_FILEPASS }

func (r *FilePassRecord) dataSize() int {
	switch {
	case r.EncryptionType != filePassRC4:
		return 2 + len(r.Raw)
	case !r.IsRC4():
		return 6 + len(r.Raw)
	}
	return 6 + 48
}

func (r *FilePassRecord) serializeBody(out *LittleEndianOutput) {
	out.WriteUShort(r.EncryptionType)
	if r.EncryptionType != filePassRC4 {
		out.WriteBytes(r.Raw)
		return
	}
	out.WriteUShort(r.MajorVersion)
	out.WriteUShort(r.MinorVersion)
	if !r.IsRC4() {
		out.WriteBytes(r.Raw)
		return
	}
	out.WriteBytes(r.Salt[:])
	out.WriteBytes(r.EncryptedVerifier[:])
	out.WriteBytes(r.EncryptedVerifierHash[:])
}

func (r *FilePassRecord) RecordSize() int                   { return standardRecordSize(r) }
func (r *FilePassRecord) Serialize(out *LittleEndianOutput) { serializeStandard(XL_FILEPASS, r, out) }

func (r *FilePassRecord) Clone() Record {
	c := *r
	c.Raw = append([]byte(nil), r.Raw...)
	return &c
}
