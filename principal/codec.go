package principal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Binary wire format for cached principals. Versioned so the cache can
// reject blobs written by an incompatible release instead of
// misinterpreting them.
const (
	formatVersionCurrent = 1

	maxFieldLen     = 255
	maxAuthorityLen = 255
	maxListLen      = 64
)

// ErrCorruptRecord is returned by Decode for truncated or malformed blobs.
var ErrCorruptRecord = errors.New("corrupt principal record")

// Encode serializes a principal into the versioned binary cache format.
//
//	Layout: version | subject | tenant | tokenID | authorities | scopes | iat | exp
//	Strings are length-prefixed (1 byte); lists carry a 1-byte count.
func Encode(p Principal) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(formatVersionCurrent)

	for _, field := range []string{p.SubjectID, p.TenantID, p.TokenID} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}
	if err := writeList(&buf, p.Authorities); err != nil {
		return nil, err
	}
	if err := writeList(&buf, p.Scopes); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, p.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, p.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode. Unknown versions fail with
// ErrCorruptRecord so stale cache entries are discarded, never trusted.
func Decode(data []byte) (Principal, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Principal{}, ErrCorruptRecord
	}
	if version != formatVersionCurrent {
		return Principal{}, ErrCorruptRecord
	}

	var p Principal

	if p.SubjectID, err = readString(reader); err != nil {
		return Principal{}, err
	}
	if p.TenantID, err = readString(reader); err != nil {
		return Principal{}, err
	}
	if p.TokenID, err = readString(reader); err != nil {
		return Principal{}, err
	}
	if p.Authorities, err = readList(reader); err != nil {
		return Principal{}, err
	}
	if p.Scopes, err = readList(reader); err != nil {
		return Principal{}, err
	}

	if err := binary.Read(reader, binary.BigEndian, &p.IssuedAt); err != nil {
		return Principal{}, ErrCorruptRecord
	}
	if err := binary.Read(reader, binary.BigEndian, &p.ExpiresAt); err != nil {
		return Principal{}, ErrCorruptRecord
	}

	return p, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > maxFieldLen {
		return errors.New("principal field too long")
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", ErrCorruptRecord
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", ErrCorruptRecord
	}
	return string(raw), nil
}

func writeList(buf *bytes.Buffer, items []string) error {
	if len(items) > maxListLen {
		return errors.New("principal list too long")
	}
	buf.WriteByte(byte(len(items)))
	for _, item := range items {
		if len(item) > maxAuthorityLen {
			return errors.New("principal list entry too long")
		}
		buf.WriteByte(byte(len(item)))
		buf.WriteString(item)
	}
	return nil
}

func readList(reader *bytes.Reader) ([]string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	if n == 0 {
		return nil, nil
	}
	items := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		item, err := readString(reader)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
