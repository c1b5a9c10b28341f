package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/Wa4h1h/go-bootserver/pkg/utils"
)

// Request is a read request (RRQ). Write requests decode with the
// same layout but are rejected by the server as illegal operations.
type Request struct {
	Filename string
	Mode     string
	Opcode   OpCode
}

func (r *Request) MarshalBinary() ([]byte, error) {
	b := new(bytes.Buffer)
	rqLen := 2 + len(r.Filename) + 1 + len(r.Mode) + 1

	b.Grow(rqLen)

	if err := binary.Write(b, binary.BigEndian, &r.Opcode); err != nil {
		return nil, fmt.Errorf("error while writing opcode: %w", err)
	}

	if _, err := b.WriteString(r.Filename); err != nil {
		return nil, fmt.Errorf("error while writing filename: %w", err)
	}

	if err := b.WriteByte(0); err != nil {
		return nil, fmt.Errorf("error while writing null byte after filename: %w", err)
	}

	if _, err := b.WriteString(r.Mode); err != nil {
		return nil, fmt.Errorf("error while writing mode: %w", err)
	}

	if err := b.WriteByte(0); err != nil {
		return nil, fmt.Errorf("error while writing null byte after mode: %w", err)
	}

	return b.Bytes(), nil
}

func (r *Request) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return utils.ErrMalformedPacket
	}

	r.Opcode = OpCode(binary.BigEndian.Uint16(data[:2]))

	if r.Opcode != OpCodeRRQ && r.Opcode != OpCodeWRQ {
		return utils.ErrWrongOpCode
	}

	parts := bytes.Split(data[2:], []byte{0})
	if len(parts) < 2 {
		return utils.ErrMalformedPacket
	}

	r.Filename = string(parts[0])
	r.Mode = string(parts[1])

	if len(r.Filename) == 0 || len(r.Mode) == 0 {
		return utils.ErrMalformedPacket
	}

	return nil
}

// OctetMode reports whether the requested transfer mode is binary.
// Only octet/binary transfers are supported.
func (r *Request) OctetMode() bool {
	m := strings.ToLower(r.Mode)

	return m == "octet" || m == "binary"
}
