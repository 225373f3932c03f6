package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"barscan/internal/api"
	"barscan/internal/capture"
	"barscan/internal/config"
	"barscan/internal/faults"
	"barscan/internal/logging"
)

const (
	maxLongPoll    = 25 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = wsPongWait * 9 / 10
	maxBodyBytes   = 1 << 16
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	preview config.Preview

	router   *mux.Router
	upgrader websocket.Upgrader
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:    bind,
		logger:  logger,
		daemon:  d,
		preview: cfg.Preview,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	srv.router = srv.routes(cfg.Paths.APIToken)

	srv.server = &http.Server{
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) *mux.Router {
	r := mux.NewRouter()
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(authMiddleware(token))

	apiRouter.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	apiRouter.HandleFunc("/results", s.handleResults).Methods(http.MethodGet)
	apiRouter.HandleFunc("/results", s.handleResetResults).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/results/{field}", s.handleGetField).Methods(http.MethodGet)
	apiRouter.HandleFunc("/results/{field}", s.handleSetField).Methods(http.MethodPut)
	apiRouter.HandleFunc("/scan/{action:enable|disable}", s.handleScan).Methods(http.MethodPost)
	apiRouter.HandleFunc("/source/{action:start|stop|pause|resume}", s.handleSource).Methods(http.MethodPost)
	apiRouter.HandleFunc("/frame.jpg", s.handleFrame).Methods(http.MethodGet)
	apiRouter.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	apiRouter.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	apiRouter.HandleFunc("/acquisitions", s.handleListAcquisitions).Methods(http.MethodGet)
	apiRouter.HandleFunc("/acquisitions", s.handleBeginAcquisition).Methods(http.MethodPost)
	apiRouter.HandleFunc("/acquisitions/{id}", s.handleAcquisition).Methods(http.MethodGet)
	apiRouter.HandleFunc("/acquisitions/{id}/complete", s.handleCompleteAcquisition).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	// Request contexts, including hijacked event streams, end with the daemon.
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StatusPayload(s.daemon.Status(r.Context())))
}

func (s *apiServer) handleResults(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Results())
}

func (s *apiServer) handleResetResults(w http.ResponseWriter, _ *http.Request) {
	s.daemon.ResetResults()
	s.writeJSON(w, http.StatusOK, s.daemon.Results())
}

func (s *apiServer) handleGetField(w http.ResponseWriter, r *http.Request) {
	field := mux.Vars(r)["field"]
	value, err := s.daemon.GetField(field)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FieldValue{Field: field, Value: value})
}

func (s *apiServer) handleSetField(w http.ResponseWriter, r *http.Request) {
	field := mux.Vars(r)["field"]
	var body api.FieldValue
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.daemon.SetField(field, body.Value); err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FieldValue{Field: field, Value: body.Value})
}

func (s *apiServer) handleScan(w http.ResponseWriter, r *http.Request) {
	switch mux.Vars(r)["action"] {
	case "enable":
		s.daemon.EnableScan()
	case "disable":
		s.daemon.DisableScan(r.Context())
	}
	s.writeJSON(w, http.StatusOK, StatusPayload(s.daemon.Status(r.Context())).Scan)
}

func (s *apiServer) handleSource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	switch mux.Vars(r)["action"] {
	case "start":
		var cfg *capture.Config
		cfg, err = readSourceConfig(r)
		if err == nil {
			_, err = s.daemon.StartSource(ctx, cfg)
		}
	case "stop":
		err = s.daemon.StopSource(ctx)
	case "pause":
		err = s.daemon.PauseSource(ctx)
	case "resume":
		err = s.daemon.ResumeSource(ctx)
	}
	if err != nil {
		s.writeFault(w, err)
		return
	}
	status := StatusPayload(s.daemon.Status(ctx))
	s.writeJSON(w, http.StatusOK, status.Source)
}

// readSourceConfig parses an optional capture config body; an empty body
// means "use the bound configuration".
func readSourceConfig(r *http.Request) (*capture.Config, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	cfg, err := capture.ParseJSON(data)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *apiServer) handleFrame(w http.ResponseWriter, _ *http.Request) {
	frame, ok := s.daemon.LatestFrame()
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "no frame captured yet")
		return
	}
	data, err := renderPreview(frame, s.preview)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(frame.Seq, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log().Debug("preview write failed", logging.Error(err))
	}
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}

	if websocket.IsWebSocketUpgrade(r) {
		s.streamEvents(w, r, since, limit)
		return
	}

	wait := query.Get("wait") == "1" || strings.EqualFold(query.Get("wait"), "true")
	ctx := r.Context()
	if wait {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxLongPoll)
		defer cancel()
	}
	events, next, err := s.daemon.Events(ctx, since, limit, wait)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventsResponse{Events: api.FromEvents(events), Next: next})
}

// streamEvents pushes every activity event after since to a WebSocket
// client as one JSON text message each.
func (s *apiServer) streamEvents(w http.ResponseWriter, r *http.Request, since uint64, limit int) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: only control frames are expected; any error ends the stream.
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	s.log().Debug("event stream opened", logging.String("remote", r.RemoteAddr))
	for {
		events, next, err := s.daemon.Events(ctx, since, limit, true)
		if err != nil || ctx.Err() != nil {
			break
		}
		for _, evt := range api.FromEvents(events) {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				cancel()
				break
			}
		}
		since = next
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.log().Debug("event stream closed", logging.String("remote", r.RemoteAddr))
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.daemon.History(r.Context(), limit)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Detections: api.FromDetections(rows)})
}

func (s *apiServer) handleListAcquisitions(w http.ResponseWriter, _ *http.Request) {
	records := s.daemon.Acquisitions()
	resp := api.AcquisitionListResponse{Acquisitions: make([]api.Acquisition, 0, len(records))}
	for _, rec := range records {
		resp.Acquisitions = append(resp.Acquisitions, api.FromAcquisition(rec))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleBeginAcquisition(w http.ResponseWriter, r *http.Request) {
	id, err := s.daemon.BeginAcquisition(r.Context())
	if err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeAcquisition(w, http.StatusCreated, id)
}

func (s *apiServer) handleAcquisition(w http.ResponseWriter, r *http.Request) {
	s.writeAcquisition(w, http.StatusOK, mux.Vars(r)["id"])
}

func (s *apiServer) handleCompleteAcquisition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.daemon.CompleteAcquisition(r.Context(), id); err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeAcquisition(w, http.StatusOK, id)
}

func (s *apiServer) writeAcquisition(w http.ResponseWriter, status int, id string) {
	rec, err := s.daemon.Acquisition(id)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeJSON(w, status, api.FromAcquisition(rec))
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// writeFault maps err through its fault marker.
func (s *apiServer) writeFault(w http.ResponseWriter, err error) {
	status := api.StatusCode(err)
	if status == http.StatusInternalServerError {
		s.log().Error("api request failed", logging.Error(err), logging.String("kind", string(faults.KindOf(err))))
	}
	s.writeJSON(w, status, api.ErrorFrom(err))
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
