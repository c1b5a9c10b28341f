package tftp

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Wa4h1h/go-bootserver/pkg/metrics"
	"github.com/Wa4h1h/go-bootserver/pkg/types"
	"github.com/Wa4h1h/go-bootserver/pkg/utils"
)

// Config configures the TFTP listener.
type Config struct {
	// Host is the bind address. Empty binds all interfaces.
	Host string

	// Port is the UDP port to bind. 0 requests an OS assigned port.
	Port int

	// RootDir is the directory transfers are served from.
	RootDir string

	// AckTimeout is how long a session waits for each ACK.
	// Default: 5s
	AckTimeout time.Duration

	// MaxSessions bounds the number of concurrent transfers.
	// Default: 64
	MaxSessions int
}

func (c *Config) applyDefaults() {
	if c.AckTimeout == 0 {
		c.AckTimeout = types.DefaultAckTimeoutSeconds * time.Second
	}

	if c.MaxSessions == 0 {
		c.MaxSessions = 64
	}
}

// Server owns the bound UDP socket, the accept loop and session
// dispatch. It serves read requests only; everything else is answered
// with an ERROR packet.
type Server struct {
	l        *zap.SugaredLogger
	m        *metrics.Metrics
	resolver *Resolver
	conn     net.PacketConn
	sem      chan struct{}
	cfg      Config

	mu        sync.Mutex
	wg        sync.WaitGroup
	running   bool
	boundPort int
}

func NewServer(l *zap.SugaredLogger, cfg Config, m *metrics.Metrics) (*Server, error) {
	cfg.applyDefaults()

	resolver, err := NewResolver(cfg.RootDir)
	if err != nil {
		return nil, err
	}

	return &Server{
		l:        l,
		m:        m,
		resolver: resolver,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.MaxSessions),
	}, nil
}

// Start binds the UDP socket and launches the accept loop. Calling
// Start on a running server is a no-op returning the existing port.
func (s *Server) Start() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.boundPort, nil
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		s.l.Errorf("error while binding %s: %s", addr, err.Error())

		return 0, fmt.Errorf("%w: %s", utils.ErrStartingServer, err.Error())
	}

	s.conn = conn
	s.boundPort = conn.LocalAddr().(*net.UDPAddr).Port
	s.running = true

	s.wg.Add(1)

	go s.acceptLoop()

	s.l.Infof("tftp server serving %s on %s", s.resolver.Root(), conn.LocalAddr())

	return s.boundPort, nil
}

// Stop closes the listening socket, which unblocks the pending read,
// and waits for the accept loop to exit. Sessions already in flight are
// not cancelled; they finish on their own sockets. Stop on a stopped
// server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	err := s.conn.Close()

	s.wg.Wait()

	s.running = false
	s.boundPort = 0

	if err != nil {
		return fmt.Errorf("error while closing connection: %w", err)
	}

	return nil
}

// Port returns the bound UDP port while the server is running.
func (s *Server) Port() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.boundPort, s.running
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		datagram := make([]byte, types.DatagramSize)

		n, addr, err := s.conn.ReadFrom(datagram)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			s.l.Errorf("error while reading datagram: %s", err.Error())

			continue
		}

		if n > 0 {
			s.handleDatagram(addr, datagram[:n])
		}
	}
}

// handleDatagram validates one request and hands it off to a session
// goroutine. Validation failures are answered on the listener socket.
func (s *Server) handleDatagram(addr net.Addr, datagram []byte) {
	var req types.Request

	if err := req.UnmarshalBinary(datagram); err != nil {
		if errors.Is(err, utils.ErrWrongOpCode) {
			s.sendError(addr, types.ErrIllegalTftpOp, "Illegal TFTP operation")
		} else {
			s.sendError(addr, types.ErrNotDefined, "Malformed request")
		}

		return
	}

	if req.Opcode != types.OpCodeRRQ {
		// write requests are decodable but unsupported
		s.sendError(addr, types.ErrIllegalTftpOp, "Illegal TFTP operation")

		return
	}

	s.l.Infof("rrq from %s -> %s (%s)", addr.String(), req.Filename, req.Mode)

	if !req.OctetMode() {
		s.sendError(addr, types.ErrNotDefined, "Only octet mode supported")

		return
	}

	path, err := s.resolver.Resolve(req.Filename)
	if err != nil {
		s.sendError(addr, types.ErrAccessViolation, "Access violation")

		return
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		s.sendError(addr, types.ErrFileNotFound, "File not found")

		return
	}

	select {
	case s.sem <- struct{}{}:
	default:
		s.l.Warnf("transfer limit reached, rejecting rrq from %s", addr.String())
		s.m.RecordTransfer("rejected")
		s.sendError(addr, types.ErrNotDefined, "server busy")

		return
	}

	go func() {
		defer func() { <-s.sem }()

		s.runSession(addr, path, req.Filename)
	}()
}

// runSession opens the session socket and file, runs the block loop
// and reports the outcome. Transport aborts stay silent; internal
// failures answer ERROR(0) on the listener socket.
func (s *Server) runSession(addr net.Addr, path string, name string) {
	l := s.l.With("transfer_id", uuid.NewString(), "peer", addr.String(), "file", name)

	// fresh ephemeral source port for the whole transfer
	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		l.Errorf("error while dialing peer: %s", err.Error())
		s.sendError(addr, types.ErrNotDefined, "Server error")
		s.m.RecordTransfer("aborted")

		return
	}

	defer func() {
		if err := conn.Close(); err != nil {
			l.Errorf("error while closing session socket: %s", err.Error())
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		l.Errorf("error while opening file: %s", err.Error())
		s.sendError(addr, types.ErrNotDefined, "Server error")
		s.m.RecordTransfer("aborted")

		return
	}

	defer func() {
		if err := f.Close(); err != nil {
			l.Errorf("error while closing file: %s", err.Error())
		}
	}()

	var t Transfer = NewSession(conn, l, s.cfg.AckTimeout, s.m)

	if err := t.Send(f); err != nil {
		switch {
		case errors.Is(err, utils.ErrAckTimeout),
			errors.Is(err, utils.ErrShortPacket),
			errors.Is(err, utils.ErrUnexpectedAck):
			// best effort abort, nothing more goes to the peer
		default:
			l.Errorf("transfer failed: %s", err.Error())
			s.sendError(addr, types.ErrNotDefined, "Server error")
		}

		s.m.RecordTransfer("aborted")

		return
	}

	s.m.RecordTransfer("completed")
	l.Infof("completed transfer")
}

func (s *Server) sendError(addr net.Addr, code types.ErrCode, msg string) {
	e := &types.Error{
		Opcode:    types.OpCodeError,
		ErrorCode: code,
		ErrMsg:    msg,
	}

	b, err := e.MarshalBinary()
	if err != nil {
		s.l.Errorf("error while marshalling error packet: %s", err.Error())

		return
	}

	if _, err := s.conn.WriteTo(b, addr); err != nil {
		s.l.Errorf("error while sending error packet to %s: %s", addr.String(), err.Error())

		return
	}

	s.m.RecordTftpError(strconv.Itoa(int(code)))
}
