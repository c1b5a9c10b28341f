package tftp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Wa4h1h/go-bootserver/pkg/metrics"
	"github.com/Wa4h1h/go-bootserver/pkg/types"
	"github.com/Wa4h1h/go-bootserver/pkg/utils"
)

type Transfer interface {
	Send(f *os.File) error
}

// Session drives one file transfer over its own ephemeral UDP socket.
// There is no retransmission: a single lost DATA or ACK aborts the
// transfer. Boot firmwares tolerant of this failure mode simply retry
// the whole request.
type Session struct {
	conn       net.Conn
	l          *zap.SugaredLogger
	m          *metrics.Metrics
	ackTimeout time.Duration
}

func NewSession(conn net.Conn, logger *zap.SugaredLogger,
	ackTimeout time.Duration, m *metrics.Metrics,
) *Session {
	return &Session{conn: conn, l: logger, ackTimeout: ackTimeout, m: m}
}

// Send streams f to the peer in 512 byte blocks. Block numbers start at
// 1 and wrap modulo 65536. A final block shorter than 512 bytes
// (possibly empty) terminates the transfer.
func (s *Session) Send(f *os.File) error {
	var blockNum uint16 = 1

	block := make([]byte, types.MaxPayloadSize)
	bytesAccum := 0

	for {
		n, err := f.Read(block)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("error while reading file block: %w", err)
		}

		if err := s.sendBlock(block[:n], blockNum); err != nil {
			return err
		}

		bytesAccum += n
		s.m.RecordTransferBytes(n)

		if n < types.MaxPayloadSize {
			s.l.Debugf("sent %d bytes, last block#=%d", bytesAccum, blockNum)

			return nil
		}

		blockNum++
	}
}

func (s *Session) sendBlock(block []byte, blockNum uint16) error {
	data := &types.Data{
		Opcode:   types.OpCodeDATA,
		Payload:  block,
		BlockNum: blockNum,
	}

	b, err := data.MarshalBinary()
	if err != nil {
		s.l.Errorf("error while marshalling data packet: %s", err.Error())

		return utils.ErrPacketMarshall
	}

	if _, err := s.conn.Write(b); err != nil {
		return fmt.Errorf("error while writing data packet: %w", err)
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(s.ackTimeout)); err != nil {
		return fmt.Errorf("error while setting read timeout: %w", err)
	}

	buf := make([]byte, types.DatagramSize)

	n, err := s.conn.Read(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			s.l.Warnf("timeout waiting for ack block#=%d, aborting transfer", blockNum)

			return utils.ErrAckTimeout
		}

		return fmt.Errorf("error while reading ack: %w", err)
	}

	if n < types.AckSize {
		s.l.Warn("short ack received, aborting transfer")

		return utils.ErrShortPacket
	}

	var ack types.Ack

	if err := ack.UnmarshalBinary(buf[:n]); err != nil {
		s.l.Warnf("unexpected reply while waiting for ack block#=%d: %s", blockNum, err.Error())

		return utils.ErrUnexpectedAck
	}

	if ack.BlockNum != blockNum {
		s.l.Warnf("ack block# %d != expected block# %d, aborting transfer", ack.BlockNum, blockNum)

		return utils.ErrUnexpectedAck
	}

	s.l.Debugf("received ack block#=%d", ack.BlockNum)

	return nil
}
