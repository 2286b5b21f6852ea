package control

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sockvisor/sockvisor/pkg/errors"
	"github.com/sockvisor/sockvisor/pkg/logging"
	"github.com/sockvisor/sockvisor/pkg/socket"
	"github.com/sockvisor/sockvisor/pkg/supervisor"
)

const defaultOperationTimeout = 60 * time.Second

// Server exposes supervisor operations over a UNIX socket. The socket file
// is owned by the server: created on Start, removed on Stop.
type Server struct {
	supervisor *supervisor.Supervisor
	socketPath string
	logger     logging.Logger

	httpServer *http.Server
	listener   net.Listener
	startedAt  time.Time
}

func NewServer(sup *supervisor.Supervisor, socketPath string, logger logging.Logger) *Server {
	return &Server{
		supervisor: sup,
		socketPath: socketPath,
		logger:     logger,
	}
}

// Start binds the control socket and begins serving in the background
func (s *Server) Start() error {
	if err := socket.ValidatePath(s.socketPath); err != nil {
		return errors.NewValidationError("invalid control socket path", err)
	}
	if err := socket.RemoveStale(s.socketPath, s.logger); err != nil {
		return errors.NewConflictError("control socket is in use", err).WithContext("path", s.socketPath)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errors.NewNetworkError("failed to bind control socket", err).WithContext("path", s.socketPath)
	}

	// Control operations manage processes; keep the socket owner-only
	if err := os.Chmod(s.socketPath, 0700); err != nil {
		listener.Close()
		return errors.NewIOError("failed to restrict control socket permissions", err).WithContext("path", s.socketPath)
	}

	s.listener = listener
	s.startedAt = time.Now()
	s.httpServer = &http.Server{
		Handler:      s.router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * defaultOperationTimeout,
	}

	s.logger.Infof("Control API listening, socket: %s", s.socketPath)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("Control API serve failed, error: %v", err)
		}
	}()

	return nil
}

// Stop shuts the API down and removes the socket file
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Infof("Stopping control API...")
	err := s.httpServer.Shutdown(ctx)

	if removeErr := os.Remove(s.socketPath); removeErr != nil && !os.IsNotExist(removeErr) {
		s.logger.Warnf("Failed to remove control socket, path: %s, error: %v", s.socketPath, removeErr)
	}

	if err != nil {
		return errors.NewNetworkError("control API shutdown failed", err)
	}
	return nil
}

func (s *Server) router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.requestIDMiddleware)

	api := router.PathPrefix(APIBasePath).Subrouter()
	api.HandleFunc("/supervisor", s.handleSupervisorInfo).Methods(http.MethodGet)
	api.HandleFunc("/programs", s.handleListPrograms).Methods(http.MethodGet)
	api.HandleFunc("/programs/{name}", s.handleProgramStatus).Methods(http.MethodGet)
	api.HandleFunc("/programs/{name}/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/programs/{name}/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/programs/{name}/restart", s.handleRestart).Methods(http.MethodPost)

	return router
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		s.logger.Debugf("Control request, method: %s, path: %s, request_id: %s", r.Method, r.URL.Path, requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSupervisorInfo(w http.ResponseWriter, r *http.Request) {
	info := SupervisorInfo{
		State:        s.supervisor.GetState(),
		ProgramCount: len(s.supervisor.AllProgramStatus()),
		StartedAt:    s.startedAt,
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, ProgramListResponse{Programs: s.supervisor.AllProgramStatus()})
}

func (s *Server) handleProgramStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	status, err := s.supervisor.ProgramStatus(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.handleOperation(w, r, "start", s.supervisor.StartProgram)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.handleOperation(w, r, "stop", s.supervisor.StopProgram)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	s.handleOperation(w, r, "restart", s.supervisor.RestartProgram)
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request, operation string,
	fn func(ctx context.Context, name string) error) {

	name := mux.Vars(r)["name"]

	ctx, cancel := context.WithTimeout(r.Context(), defaultOperationTimeout)
	defer cancel()

	if err := fn(ctx, name); err != nil {
		s.logger.Warnf("Control operation failed, operation: %s, program: %s, error: %v", operation, name, err)
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, OperationResponse{Name: name, Operation: operation, Result: "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Errorf("Failed to encode control response, error: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusCodeFor(err), ErrorResponse{
		Error:     err.Error(),
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

func statusCodeFor(err error) int {
	switch {
	case errors.IsNotFoundError(err):
		return http.StatusNotFound
	case errors.IsValidationError(err):
		return http.StatusBadRequest
	case errors.IsConflictError(err):
		return http.StatusConflict
	case errors.IsTimeoutError(err):
		return http.StatusGatewayTimeout
	case errors.IsCancelledError(err):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
