package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"localclaw/internal/containers"
	"localclaw/internal/metrics"

	"go.uber.org/zap"
)

const pairingChunkSize = 4096

var (
	preflightCommand = []string{"node", "openclaw.mjs", "doctor", "--fix"}
	pairingCommand   = []string{"node", "openclaw.mjs", "channels", "login", "--channel", "whatsapp"}
)

// PairingService attaches to a running agent and streams its channel login output
type PairingService interface {
	// Open runs the repair pre-flight, starts the login command and returns its live output
	Open(ctx context.Context, tenantID, agentID string) (*PairingStream, error)
}

type pairingService struct {
	backend        containers.Backend
	prefixes       []string
	preflightLimit time.Duration
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

func NewPairingService(
	backend containers.Backend,
	prefixes []string,
	preflightLimit time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) PairingService {
	return &pairingService{
		backend:        backend,
		prefixes:       prefixes,
		preflightLimit: preflightLimit,
		metrics:        m,
		logger:         logger,
	}
}

func (s *pairingService) Open(ctx context.Context, tenantID, agentID string) (*PairingStream, error) {
	if agentID == "" {
		return nil, invalid("agentId", "is required")
	}
	if !HasAgentPrefix(agentID, s.prefixes) {
		return nil, invalid("agentId", "is not an agent id")
	}

	if err := s.checkOwner(ctx, tenantID, agentID); err != nil {
		return nil, err
	}

	s.preflight(ctx, agentID)

	rc, err := s.backend.Exec(ctx, agentID, containers.ExecSpec{
		Cmd: pairingCommand,
		Env: []string{"TERM=xterm-256color"},
		Tty: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start pairing: %w", err)
	}

	s.metrics.PairingStreamsActive.Inc()
	return newPairingStream(rc, func() {
		s.metrics.PairingStreamsActive.Dec()
	}), nil
}

// checkOwner rejects agents that are missing or labelled for another tenant
func (s *pairingService) checkOwner(ctx context.Context, tenantID, agentID string) error {
	list, err := s.backend.ListContainers(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}
	for _, c := range list {
		if c.Name() != agentID {
			continue
		}
		if owner, ok := c.Labels["localclaw.tenant-id"]; ok && owner != tenantID {
			return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
}

// preflight runs the repair command to completion. Failures are logged only.
func (s *pairingService) preflight(ctx context.Context, agentID string) {
	ctx, cancel := context.WithTimeout(ctx, s.preflightLimit)
	defer cancel()

	rc, err := s.backend.Exec(ctx, agentID, containers.ExecSpec{Cmd: preflightCommand})
	if err != nil {
		s.logger.Warn("pairing pre-flight failed to start", zap.String("agent_id", agentID), zap.Error(err))
		return
	}
	defer rc.Close()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		s.logger.Warn("pairing pre-flight failed", zap.String("agent_id", agentID), zap.Error(err))
	}
}

// PairingStream is a single-pass producer of terminal output chunks.
// Next returns io.EOF once the process ends; a read error is delivered as a
// final diagnostic chunk followed by io.EOF.
type PairingStream struct {
	rc      io.ReadCloser
	buf     []byte
	pending error
	done    bool
	once    sync.Once
	onClose func()
}

func newPairingStream(rc io.ReadCloser, onClose func()) *PairingStream {
	return &PairingStream{
		rc:      rc,
		buf:     make([]byte, pairingChunkSize),
		onClose: onClose,
	}
}

// Next blocks until the next chunk of output is available
func (p *PairingStream) Next() ([]byte, error) {
	if p.done {
		return nil, io.EOF
	}
	if p.pending != nil {
		return p.finish(p.pending)
	}

	for {
		n, err := p.rc.Read(p.buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, p.buf[:n])
			p.pending = err
			return chunk, nil
		}
		if err != nil {
			return p.finish(err)
		}
	}
}

func (p *PairingStream) finish(err error) ([]byte, error) {
	p.done = true
	p.Close()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	return []byte(fmt.Sprintf("\r\n[pairing stream error: %v]\r\n", err)), nil
}

// Close detaches from the exec session. It is safe to call more than once.
func (p *PairingStream) Close() error {
	var err error
	p.once.Do(func() {
		err = p.rc.Close()
		if p.onClose != nil {
			p.onClose()
		}
	})
	return err
}
