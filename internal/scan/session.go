package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/poslane/internal/capture"
	"github.com/angelmondragon/poslane/pkg/enums"
	pkgerrors "github.com/angelmondragon/poslane/pkg/errors"
	"github.com/angelmondragon/poslane/pkg/logger"
)

// Feedback display windows. Unavailable outcomes stay up longer because the
// cashier has to put the unit aside.
const (
	unavailableMessageWindow = 5 * time.Second
	defaultMessageWindow     = 2 * time.Second
)

// Session owns one capture stream and feeds its detections through the
// debouncer into the queue. In continuous mode the stream stays open across
// scans; otherwise every terminal outcome tears it down, success or failure
// alike, and the cashier re-arms for the next unit.
type Session struct {
	mu         sync.Mutex
	stream     capture.Stream
	continuous bool

	provider  capture.Provider
	debouncer *Debouncer
	queue     *Queue
	logg      *logger.Logger
	now       func() time.Time

	message      string
	messageCode  pkgerrors.Code
	messageUntil time.Time
}

// SessionParams wires a scan session.
type SessionParams struct {
	Provider  capture.Provider
	Debouncer *Debouncer
	Queue     *Queue
	Logger    *logger.Logger
	Now       func() time.Time
}

// NewSession builds the session and hooks it into the queue's settle events.
func NewSession(params SessionParams) (*Session, error) {
	if params.Provider == nil {
		return nil, fmt.Errorf("capture provider required")
	}
	if params.Debouncer == nil {
		return nil, fmt.Errorf("debouncer required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("scan queue required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	session := &Session{
		provider:  params.Provider,
		debouncer: params.Debouncer,
		queue:     params.Queue,
		logg:      params.Logger,
		now:       now,
	}
	params.Queue.SetOnSettled(session.handleSettled)
	return session, nil
}

// Start acquires the camera and arms the session. Starting an armed session
// only switches the mode.
func (s *Session) Start(ctx context.Context, continuous bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.continuous = continuous
	if s.stream != nil {
		return nil
	}

	stream, err := capture.Acquire(ctx, s.provider, s.logg)
	if err != nil {
		return err
	}
	s.stream = stream
	s.logg.Info(ctx, "scan session armed")
	return nil
}

// Stop releases the camera and clears suppression state.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Session) stopLocked(ctx context.Context) {
	if s.stream == nil {
		return
	}
	if err := s.stream.Close(); err != nil {
		s.logg.Warn(ctx, "failed to release capture stream")
	}
	s.stream = nil
	s.debouncer.Reset()
	s.logg.Info(ctx, "scan session disarmed")
}

// HandleDetection feeds one raw detector read through the pipeline. The
// returned item is zero-valued when the read was suppressed.
func (s *Session) HandleDetection(ctx context.Context, raw string) (Item, bool, string) {
	s.mu.Lock()
	armed := s.stream != nil
	s.mu.Unlock()
	if !armed {
		return Item{}, false, "not armed"
	}

	code, ok, reason := s.debouncer.Accept(raw)
	if !ok {
		return Item{}, false, reason
	}
	return s.queue.Enqueue(ctx, code), true, ""
}

// SubmitManual feeds a wedge or hand-keyed code through the same debounce
// and queue pipeline without requiring an armed camera.
func (s *Session) SubmitManual(ctx context.Context, raw string) (Item, bool, string) {
	code, ok, reason := s.debouncer.Accept(raw)
	if !ok {
		return Item{}, false, reason
	}
	return s.queue.Enqueue(ctx, code), true, ""
}

// handleSettled runs on every terminal queue transition: release the
// debouncer, surface the outcome message, and in single-shot mode drop the
// stream.
func (s *Session) handleSettled(item Item) {
	s.debouncer.Settle()

	s.mu.Lock()
	defer s.mu.Unlock()

	window := defaultMessageWindow
	if item.ErrorCode == pkgerrors.CodeUnavailable {
		window = unavailableMessageWindow
	}
	s.message = item.Message
	s.messageCode = item.ErrorCode
	s.messageUntil = s.now().Add(window)

	if !s.continuous {
		s.stopLocked(context.Background())
	}
}

// Status is the UI-facing session snapshot.
type Status struct {
	Armed        bool             `json:"armed"`
	Continuous   bool             `json:"continuous"`
	Device       *capture.Device  `json:"device,omitempty"`
	Message      string           `json:"message,omitempty"`
	MessageCode  pkgerrors.Code   `json:"message_code,omitempty"`
	MessageLevel enums.ScanStatus `json:"message_level,omitempty"`
}

// Status reports the current session state; expired messages are dropped.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Armed:      s.stream != nil,
		Continuous: s.continuous,
	}
	if s.stream != nil {
		device := s.stream.Device()
		status.Device = &device
	}
	if s.message != "" && s.now().Before(s.messageUntil) {
		status.Message = s.message
		status.MessageCode = s.messageCode
		status.MessageLevel = enums.ScanStatusSuccess
		if s.messageCode != "" {
			status.MessageLevel = enums.ScanStatusError
		}
	}
	return status
}
