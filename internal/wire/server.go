package wire

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/book"
	"fenrir/internal/engine"
)

const (
	defaultNWorkers    = 10
	maxFrameSize       = 64 * 1024
	defaultConnTimeout = 30 * time.Second
	lengthPrefixSize   = 4
)

// Engine is the subset of *engine.Engine the session layer drives.
type Engine interface {
	Submit(req engine.SubmitRequest) ([]*book.Execution, error)
	Cancel(symbol, origClientID, newClientID string) []*book.Execution
	Amend(symbol, origClientID, newClientID string, newQty *uint64, newPrice *decimal.Decimal) []*book.Execution
}

// Server is the TCP front door translating the wire vocabulary into Engine
// calls and execution batches back into framed reports. A tomb-managed
// accept loop feeds a fixed worker pool reading connections. Outbound
// reports route by client id rather than by connection address, since a
// single execution batch can carry fills for two different clients' orders
// (the aggressor and the resting counterparty).
type Server struct {
	addr   string
	engine Engine
	pool   *workerPool

	mu       sync.Mutex
	sessions map[string]net.Conn // client id -> connection

	cancel context.CancelFunc
}

// New constructs a Server listening on addr (host:port).
func New(addr string, eng Engine) *Server {
	return &Server{
		addr:     addr,
		engine:   eng,
		pool:     newWorkerPool(defaultNWorkers),
		sessions: make(map[string]net.Conn),
	}
}

// Run accepts connections until ctx is cancelled or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("wire: listen %s: %w", s.addr, err)
	}
	defer listener.Close()

	// Closing the listener is what unblocks Accept once ctx is done.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	log.Info().Str("addr", s.addr).Msg("wire server listening")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				default:
					log.Error().Err(err).Msg("wire: accept failed")
					continue
				}
			}
			s.pool.AddTask(conn)
		}
	}
}

// Shutdown stops the accept loop.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

// handleConnection reads length-prefixed frames from conn until it closes
// or t is dying, dispatching each to handleFrame.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return nil
	}
	defer s.closeConn(conn)

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(defaultConnTimeout))
		frame, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				log.Debug().Err(err).Str("addr", conn.RemoteAddr().String()).Msg("wire: connection read ended")
			}
			return nil
		}

		msg, err := Decode(frame)
		if err != nil {
			log.Warn().Err(err).Msg("wire: malformed frame")
			writeFrame(conn, ErrorReportMessage{Err: err.Error()}.Serialize())
			continue
		}

		s.handleMessage(conn, msg)
	}
}

func (s *Server) handleMessage(conn net.Conn, msg InboundMessage) {
	switch msg.Type {
	case Heartbeat:
		return
	case NewOrder:
		s.registerSession(msg.New.ClientID, conn)
		execs, err := s.engine.Submit(engine.SubmitRequest{
			ClientID: msg.New.ClientID,
			Symbol:   msg.New.Symbol,
			Side:     msg.New.Side,
			Type:     msg.New.Type,
			Quantity: msg.New.Quantity,
			Price:    msg.New.Price,
			OwnerID:  msg.New.OwnerID,
		})
		if err != nil {
			writeFrame(conn, ErrorReportMessage{Err: err.Error()}.Serialize())
			return
		}
		s.dispatch(execs)
	case CancelOrder:
		execs := s.engine.Cancel(msg.Cancel.Symbol, msg.Cancel.OrigClientID, msg.Cancel.NewClientID)
		s.dispatch(execs)
	case AmendOrder:
		var newQty *uint64
		if msg.Amend.HasNewQty {
			newQty = &msg.Amend.NewQty
		}
		var newPrice *decimal.Decimal
		if msg.Amend.HasNewPrice {
			newPrice = &msg.Amend.NewPrice
		}
		execs := s.engine.Amend(msg.Amend.Symbol, msg.Amend.OrigClientID, msg.Amend.NewClientID, newQty, newPrice)
		s.dispatch(execs)
	default:
		writeFrame(conn, ErrorReportMessage{Err: ErrInvalidMessageType.Error()}.Serialize())
	}
}

// dispatch routes each execution's report to the session registered under
// its ClientID, if any is connected. Liquidity-provider maker executions
// (ClientID has no registered session) are simply not delivered anywhere —
// there is no network client to deliver them to.
func (s *Server) dispatch(execs []*book.Execution) {
	for _, exec := range execs {
		report := BuildReport(exec)
		s.mu.Lock()
		conn, ok := s.sessions[exec.ClientID]
		s.mu.Unlock()
		if !ok {
			continue
		}
		if err := writeFrame(conn, report.Serialize()); err != nil {
			log.Debug().Err(err).Str("clientId", exec.ClientID).Msg("wire: failed to deliver report")
		}
	}
}

func (s *Server) registerSession(clientID string, conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[clientID] = conn
}

func (s *Server) closeConn(conn net.Conn) {
	s.mu.Lock()
	for id, c := range s.sessions {
		if c == conn {
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	conn.Close()
}

func readFrame(conn net.Conn) ([]byte, error) {
	var lenBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > maxFrameSize {
		return nil, fmt.Errorf("wire: invalid frame length %d", n)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(conn, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

func writeFrame(conn net.Conn, frame []byte) error {
	var lenBuf [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(frame)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(frame)
	return err
}
