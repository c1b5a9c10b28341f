package utils

import "errors"

var (
	ErrStartingServer    = errors.New("error: starting the udp server")
	ErrWrongOpCode       = errors.New("error: invalid operation code")
	ErrMalformedPacket   = errors.New("error: malformed packet")
	ErrShortPacket       = errors.New("error: packet too short")
	ErrDataPayloadTooBig = errors.New("error: payload exceeds 512 bytes")
	ErrPacketMarshall    = errors.New("error: can not marshall packet")
	ErrAccessViolation   = errors.New("error: path escapes the served root directory")
	ErrAckTimeout        = errors.New("error: timed out waiting for ack")
	ErrUnexpectedAck     = errors.New("error: unexpected ack")
	ErrMissingTLSConfig  = errors.New("error: https requires an existing certificate and key file")
)
