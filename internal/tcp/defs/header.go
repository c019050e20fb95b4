package defs

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the encoded size of Header: five little-endian int32 fields
const HeaderSize = 20

var ErrShortHeader = errors.New("short header")

// Header is the fixed preamble of every request and response.
// Any payload follows it on the wire and is sized by PayloadSize.
type Header struct {
	Type        CommType
	Flags       CommFlag
	Desc        int32
	Error       ErrorCode
	PayloadSize int32
}

// Encode writes h into dst, which must hold at least HeaderSize bytes
func (h Header) Encode(dst []byte) {
	_ = dst[HeaderSize-1]
	binary.LittleEndian.PutUint32(dst[0:4], uint32(h.Type))
	binary.LittleEndian.PutUint32(dst[4:8], uint32(h.Flags))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(h.Desc))
	binary.LittleEndian.PutUint32(dst[12:16], uint32(h.Error))
	binary.LittleEndian.PutUint32(dst[16:20], uint32(h.PayloadSize))
}

// DecodeHeader parses the first HeaderSize bytes of b
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d bytes, need %d", ErrShortHeader, len(b), HeaderSize)
	}
	return Header{
		Type:        CommType(int32(binary.LittleEndian.Uint32(b[0:4]))),
		Flags:       CommFlag(int32(binary.LittleEndian.Uint32(b[4:8]))),
		Desc:        int32(binary.LittleEndian.Uint32(b[8:12])),
		Error:       ErrorCode(int32(binary.LittleEndian.Uint32(b[12:16]))),
		PayloadSize: int32(binary.LittleEndian.Uint32(b[16:20])),
	}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler
func (h Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	h.Encode(b)
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (h *Header) UnmarshalBinary(b []byte) error {
	decoded, err := DecodeHeader(b)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// Reply builds the response header for a request: type, flags and descriptor
// are echoed and the error code is set.
func (h Header) Reply(code ErrorCode) Header {
	return Header{
		Type:  h.Type,
		Flags: h.Flags,
		Desc:  h.Desc,
		Error: code,
	}
}

func (h Header) String() string {
	return fmt.Sprintf("%s flags=%s desc=%d err=%d size=%d", h.Type, h.Flags, h.Desc, int32(h.Error), h.PayloadSize)
}
