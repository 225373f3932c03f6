package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"barscan/internal/api"
	"barscan/internal/capture"
	"barscan/internal/daemon"
	"barscan/internal/logging"
	"barscan/internal/logs"
)

// maxEventWait caps how long an Events call may block.
const maxEventWait = 25 * time.Second

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName("Barscan", srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun barscan stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) session(resp *SessionResponse) {
	status := s.daemon.Status(s.ctx)
	resp.Session = api.FromHandle(status.Source, status.Paused)
}

func (s *service) Start(req StartRequest, resp *SessionResponse) error {
	var cfg *capture.Config
	if raw := strings.TrimSpace(string(req.Config)); raw != "" && raw != "null" {
		parsed, err := capture.ParseJSON(req.Config)
		if err != nil {
			return err
		}
		cfg = &parsed
	}
	handle, err := s.daemon.StartSource(s.ctx, cfg)
	if err != nil {
		return err
	}
	s.log().Info("scan session started via IPC",
		logging.String(logging.FieldEventType, "source_start"),
		logging.String(logging.FieldSessionID, handle.SessionID),
		logging.Device(handle.Device))
	s.session(resp)
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("scan session stop requested")
	if err := s.daemon.StopSource(s.ctx); err != nil {
		return err
	}
	resp.Stopped = true
	s.log().Info("scan session stopped via IPC",
		logging.String(logging.FieldEventType, "source_stop"))
	return nil
}

func (s *service) Pause(_ PauseRequest, resp *SessionResponse) error {
	if err := s.daemon.PauseSource(s.ctx); err != nil {
		return err
	}
	s.session(resp)
	return nil
}

func (s *service) Resume(_ ResumeRequest, resp *SessionResponse) error {
	if err := s.daemon.ResumeSource(s.ctx); err != nil {
		return err
	}
	s.session(resp)
	return nil
}

func (s *service) EnableScan(_ ScanRequest, resp *ScanResponse) error {
	resp.Changed = s.daemon.EnableScan()
	s.scanState(resp, true)
	return nil
}

func (s *service) DisableScan(_ ScanRequest, resp *ScanResponse) error {
	resp.Changed = s.daemon.DisableScan(s.ctx)
	s.scanState(resp, false)
	return nil
}

func (s *service) scanState(resp *ScanResponse, enabled bool) {
	resp.Scan = api.FromScanState(s.daemon.Status(s.ctx).Scan)
	if resp.Changed {
		s.log().Info("scanning toggled via IPC",
			logging.String(logging.FieldEventType, "scan_toggle"),
			logging.Bool("enabled", enabled))
	}
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.DaemonStatus = daemon.StatusPayload(s.daemon.Status(s.ctx))
	resp.LogPath = s.daemon.LogPath()
	return nil
}

func (s *service) Results(_ ResultsRequest, resp *ResultsResponse) error {
	resp.Fields = s.daemon.Results()
	return nil
}

func (s *service) GetField(req FieldRequest, resp *FieldResponse) error {
	value, err := s.daemon.GetField(req.Field)
	if err != nil {
		return err
	}
	resp.Field = req.Field
	resp.Value = value
	return nil
}

func (s *service) SetField(req FieldRequest, resp *FieldResponse) error {
	if err := s.daemon.SetField(req.Field, req.Value); err != nil {
		return err
	}
	s.log().Info("result field set via IPC",
		logging.String(logging.FieldEventType, "results_set"),
		logging.String("field", req.Field))
	resp.Field = req.Field
	resp.Value = req.Value
	return nil
}

func (s *service) ResetResults(_ ResetResultsRequest, resp *ResultsResponse) error {
	s.daemon.ResetResults()
	s.log().Info("result fields reset via IPC",
		logging.String(logging.FieldEventType, "results_reset"))
	resp.Fields = s.daemon.Results()
	return nil
}

func (s *service) BeginAcquisition(_ AcquisitionRequest, resp *AcquisitionResponse) error {
	id, err := s.daemon.BeginAcquisition(s.ctx)
	if err != nil {
		return err
	}
	return s.acquisition(id, resp)
}

func (s *service) CompleteAcquisition(req AcquisitionRequest, resp *AcquisitionResponse) error {
	if _, err := s.daemon.CompleteAcquisition(s.ctx, req.ID); err != nil {
		return err
	}
	return s.acquisition(req.ID, resp)
}

func (s *service) acquisition(id string, resp *AcquisitionResponse) error {
	rec, err := s.daemon.Acquisition(id)
	if err != nil {
		return err
	}
	resp.Acquisition = api.FromAcquisition(rec)
	return nil
}

func (s *service) AcquisitionStatus(req AcquisitionRequest, resp *AcquisitionStatusResponse) error {
	completed, err := s.daemon.AcquisitionStatus(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.ID = req.ID
	if completed != nil {
		resp.Completed = true
		resp.CompletedAt = api.FormatTime(*completed)
	}
	return nil
}

func (s *service) Acquisitions(_ AcquisitionsRequest, resp *AcquisitionsResponse) error {
	records := s.daemon.Acquisitions()
	resp.Acquisitions = make([]api.Acquisition, 0, len(records))
	for _, rec := range records {
		resp.Acquisitions = append(resp.Acquisitions, api.FromAcquisition(rec))
	}
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	rows, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Detections = api.FromDetections(rows)
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait > maxEventWait {
		wait = maxEventWait
	}
	ctx := s.ctx
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait)
		defer cancel()
	}
	events, next, err := s.daemon.Events(ctx, req.Since, req.Limit, wait > 0)
	if err != nil {
		return err
	}
	resp.Events = api.FromEvents(events)
	resp.Next = next
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}
