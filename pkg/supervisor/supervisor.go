package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/sockvisor/sockvisor/pkg/errors"
	"github.com/sockvisor/sockvisor/pkg/logging"
	"github.com/sockvisor/sockvisor/pkg/monitoring"
	"github.com/sockvisor/sockvisor/pkg/process"
	"github.com/sockvisor/sockvisor/pkg/socket"
	"github.com/sockvisor/sockvisor/pkg/supervisor/programstate"
)

type Options struct {
	// How long Stop waits for programs to drain before giving up
	ForceShutdownTimeout time.Duration

	// Default wait between stop signal and kill escalation when a program
	// spec does not set its own
	DefaultStopWaitTimeout time.Duration
}

// SupervisorState represents the current state of the supervisor itself
type SupervisorState string

const (
	SupervisorStateNotStarted SupervisorState = "not_started"
	SupervisorStateRunning    SupervisorState = "running"
	SupervisorStateStopping   SupervisorState = "stopping"
	SupervisorStateStopped    SupervisorState = "stopped"
)

// Status is the externally visible snapshot of one managed program
type Status struct {
	programstate.StateInfo
	PID          int                           `json:"pid,omitempty"`
	RestartCount int                           `json:"restart_count"`
	StartedAt    *time.Time                    `json:"started_at,omitempty"`
	Health       *monitoring.HealthCheckState  `json:"health,omitempty"`
}

type eventKind int

const (
	evStart eventKind = iota
	evStop
	evExit
	evRespawnDue
	evKillDue
	evShutdown
)

// event is one unit of work for the supervision loop. Lifecycle events for
// a given program are processed strictly sequentially because a single
// goroutine drains the queue.
type event struct {
	kind       eventKind
	name       string
	generation int
	exitState  *os.ProcessState
	waitErr    error
	reply      chan error
}

type programEntry struct {
	spec       ProgramSpec
	machine    *programstate.Machine
	logger     logging.Logger
	spawnCmd   process.StdSpawnCmd
	stopSignal syscall.Signal
	backoff    RestartBackoff

	// Mutable lifecycle fields, owned by the supervision loop
	generation      int
	process         *os.Process
	logCloser       io.Closer
	startedAt       time.Time
	restartCount    int
	stopRequested   bool
	stopReplies     []chan error
	respawnTimer    *time.Timer
	killTimer       *time.Timer
	healthMonitor   monitoring.HealthMonitor
	shutdownPending bool
}

// Supervisor owns a set of program specs and maintains the invariant that
// each is running unless explicitly stopped. All lifecycle mutations happen
// on a single event-loop goroutine.
type Supervisor struct {
	options  Options
	logger   logging.Logger
	programs map[string]*programEntry
	state    SupervisorState
	events   chan event
	loopDone chan struct{}
	mutex    sync.Mutex

	shutdownInitiated bool
	shutdownCount     int
	shutdownReply     chan error
}

func NewSupervisor(options Options, logger logging.Logger) *Supervisor {
	return &Supervisor{
		options:  options,
		logger:   logger,
		programs: make(map[string]*programEntry),
		state:    SupervisorStateNotStarted,
		events:   make(chan event, 64),
		loopDone: make(chan struct{}),
	}
}

// AddProgram registers a program spec. The program is not spawned until
// StartProgram is called (or autostart at supervisor start).
func (s *Supervisor) AddProgram(spec ProgramSpec) error {
	if err := ValidateProgramSpec(spec); err != nil {
		return errors.NewValidationError("invalid program spec", err).WithContext("program", spec.Name)
	}

	stopSignal, err := process.ParseSignalName(spec.StopSignal)
	if err != nil {
		return errors.NewValidationError("invalid stop signal", err).WithContext("program", spec.Name)
	}

	s.logger.Infof("Adding program, name: %s, autostart: %t, autorestart: %s, stopsignal: %s",
		spec.Name, spec.Autostart, spec.Autorestart, spec.StopSignal)

	logger := logging.NewLogger("program: "+spec.Name+" , ", logging.LogFuncs{
		Debugf: s.logger.Debugf,
		Infof:  s.logger.Infof,
		Warnf:  s.logger.Warnf,
		Errorf: s.logger.Errorf,
	})

	entry := &programEntry{
		spec:       spec,
		machine:    programstate.NewMachine(spec.Name, logger),
		logger:     logger,
		spawnCmd:   process.NewStdSpawnCmd(spec.Execution, spec.Name, logger),
		stopSignal: stopSignal,
		backoff:    NewRestartBackoff(spec.Backoff, spec.Name, logger),
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.programs[spec.Name]; exists {
		return errors.NewConflictError("program already exists", nil).WithContext("program", spec.Name)
	}
	s.programs[spec.Name] = entry

	return nil
}

// RemoveProgram deregisters a program. Only allowed while the program is
// not running.
func (s *Supervisor) RemoveProgram(name string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.programs[name]
	if !exists {
		return errors.NewNotFoundError("program not found", nil).WithContext("program", name)
	}

	switch entry.machine.Current() {
	case programstate.ProgramStateStopped, programstate.ProgramStateFatal, programstate.ProgramStateExited:
		delete(s.programs, name)
		s.logger.Infof("Program removed, name: %s", name)
		return nil
	default:
		return errors.NewValidationError(
			fmt.Sprintf("cannot remove program in state '%s': stop it first", entry.machine.Current()),
			nil,
		).WithContext("program", name)
	}
}

// Start launches the supervision loop and spawns all autostart programs
func (s *Supervisor) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}

	s.mutex.Lock()
	if s.state != SupervisorStateNotStarted {
		state := s.state
		s.mutex.Unlock()
		return errors.NewValidationError(
			fmt.Sprintf("supervisor already started, state: %s", state), nil)
	}
	s.state = SupervisorStateRunning
	autostart := make([]string, 0, len(s.programs))
	for name, entry := range s.programs {
		if entry.spec.Autostart {
			autostart = append(autostart, name)
		}
	}
	s.mutex.Unlock()

	s.logger.Infof("Starting supervisor...")

	go s.run()

	errorCollection := errors.NewErrorCollection()
	for _, name := range autostart {
		if err := s.StartProgram(ctx, name); err != nil {
			s.logger.Errorf("Autostart failed, program: %s, error: %v", name, err)
			errorCollection.Add(errors.NewProcessError("autostart failed", err).WithContext("program", name))
		}
	}

	s.logger.Infof("Supervisor started, programs: %d, autostarted: %d", len(s.programs), len(autostart))
	return errorCollection.ToError()
}

// Stop drains all programs and terminates the supervision loop
func (s *Supervisor) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mutex.Lock()
	if s.state != SupervisorStateRunning {
		state := s.state
		s.mutex.Unlock()
		return errors.NewValidationError(
			fmt.Sprintf("supervisor is not running, state: %s", state), nil)
	}
	s.state = SupervisorStateStopping
	s.mutex.Unlock()

	s.logger.Infof("Stopping supervisor...")

	timeout := s.options.ForceShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply := make(chan error, 1)
	s.postEvent(event{kind: evShutdown, reply: reply})

	var err error
	select {
	case err = <-reply:
	case <-ctx.Done():
		err = errors.NewTimeoutError("supervisor shutdown timed out", ctx.Err())
	}

	s.setState(SupervisorStateStopped)
	s.logger.Infof("Supervisor stopped")
	return err
}

// StartProgram spawns a registered program
func (s *Supervisor) StartProgram(ctx context.Context, name string) error {
	if err := s.checkRunning(ctx, name); err != nil {
		return err
	}

	reply := make(chan error, 1)
	s.postEvent(event{kind: evStart, name: name, reply: reply})

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return errors.NewCancelledError("program start was cancelled", ctx.Err()).WithContext("program", name)
	}
}

// StopProgram sends the configured stop signal and waits for the program to
// exit. An explicit stop suppresses any automatic restart.
func (s *Supervisor) StopProgram(ctx context.Context, name string) error {
	if err := s.checkRunning(ctx, name); err != nil {
		return err
	}

	reply := make(chan error, 1)
	s.postEvent(event{kind: evStop, name: name, reply: reply})

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return errors.NewCancelledError("program stop was cancelled", ctx.Err()).WithContext("program", name)
	}
}

// RestartProgram stops the program if it is running, then starts it again
func (s *Supervisor) RestartProgram(ctx context.Context, name string) error {
	entry, err := s.getEntry(name)
	if err != nil {
		return err
	}

	switch entry.machine.Current() {
	case programstate.ProgramStateRunning, programstate.ProgramStateStarting,
		programstate.ProgramStateBackoff, programstate.ProgramStateStopping:
		if err := s.StopProgram(ctx, name); err != nil {
			return errors.NewProcessError("failed to stop program during restart", err).WithContext("program", name)
		}
	}

	return s.StartProgram(ctx, name)
}

// GetState returns the current supervisor state
func (s *Supervisor) GetState() SupervisorState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// ProgramStatus returns the status snapshot of one program
func (s *Supervisor) ProgramStatus(name string) (Status, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.programs[name]
	if !exists {
		return Status{}, errors.NewNotFoundError("program not found", nil).WithContext("program", name)
	}
	return s.statusUnderLock(entry), nil
}

// AllProgramStatus returns status snapshots of all registered programs
func (s *Supervisor) AllProgramStatus() map[string]Status {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result := make(map[string]Status, len(s.programs))
	for name, entry := range s.programs {
		result[name] = s.statusUnderLock(entry)
	}
	return result
}

func (s *Supervisor) statusUnderLock(entry *programEntry) Status {
	status := Status{
		StateInfo:    entry.machine.GetStateInfo(),
		RestartCount: entry.restartCount,
	}
	if entry.process != nil {
		status.PID = entry.process.Pid
		startedAt := entry.startedAt
		status.StartedAt = &startedAt
	}
	if entry.healthMonitor != nil {
		status.Health = entry.healthMonitor.State()
	}
	return status
}

func (s *Supervisor) checkRunning(ctx context.Context, name string) error {
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}
	if err := ValidateProgramName(name); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.programs[name]; !exists {
		return errors.NewNotFoundError("program not found", nil).WithContext("program", name)
	}
	if s.state != SupervisorStateRunning {
		return errors.NewValidationError(
			fmt.Sprintf("supervisor must be running, current state: %s", s.state),
			nil,
		).WithContext("program", name)
	}
	return nil
}

func (s *Supervisor) getEntry(name string) (*programEntry, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.programs[name]
	if !exists {
		return nil, errors.NewNotFoundError("program not found", nil).WithContext("program", name)
	}
	return entry, nil
}

func (s *Supervisor) setState(state SupervisorState) {
	s.mutex.Lock()
	s.state = state
	s.mutex.Unlock()
}

// postEvent enqueues an event without blocking forever on a finished loop
func (s *Supervisor) postEvent(ev event) {
	select {
	case s.events <- ev:
	case <-s.loopDone:
		if ev.reply != nil {
			ev.reply <- errors.NewCancelledError("supervisor loop has exited", nil)
		}
	}
}

// run is the supervision loop: a single goroutine multiplexing spawn
// requests, child exits, respawn timers and shutdown over one queue, so
// lifecycle events of each program are handled strictly in order.
func (s *Supervisor) run() {
	defer close(s.loopDone)

	for ev := range s.events {
		s.mutex.Lock()
		switch ev.kind {
		case evStart:
			s.handleStart(ev)
		case evStop:
			s.handleStop(ev)
		case evExit:
			s.handleExit(ev)
		case evRespawnDue:
			s.handleRespawnDue(ev)
		case evKillDue:
			s.handleKillDue(ev)
		case evShutdown:
			s.handleShutdown(ev)
		}
		finished := s.shutdownInitiated && s.shutdownCount == 0
		if finished && s.shutdownReply != nil {
			s.shutdownReply <- nil
			s.shutdownReply = nil
		}
		s.mutex.Unlock()
		if finished {
			return
		}
	}
}

func (s *Supervisor) handleStart(ev event) {
	entry, exists := s.programs[ev.name]
	if !exists {
		ev.reply <- errors.NewNotFoundError("program not found", nil).WithContext("program", ev.name)
		return
	}

	if err := entry.machine.ValidateOperation("start"); err != nil {
		ev.reply <- err
		return
	}

	entry.stopRequested = false
	ev.reply <- s.spawn(entry, "start")
}

// spawn launches the program's process and wires the exit watcher. On spawn
// failure the restart policy decides between BACKOFF and FATAL.
func (s *Supervisor) spawn(entry *programEntry, operation string) error {
	name := entry.spec.Name

	if err := entry.machine.Transition(programstate.ProgramStateStarting, operation, nil); err != nil {
		return err
	}

	// A fresh start must never reuse a stale socket file left by a previous
	// run; the live socket is owned by the server and left alone
	if entry.spec.Socket != nil {
		if err := socket.RemoveStale(entry.spec.Socket.Path, entry.logger); err != nil {
			entry.logger.Warnf("Socket cleanup failed, program: %s, error: %v", name, err)
		}
	}

	entry.generation++
	generation := entry.generation

	proc, logCloser, err := entry.spawnCmd(context.Background())
	if err != nil {
		spawnErr := errors.NewSpawnError("failed to spawn program", err).WithContext("program", name)
		entry.logger.Errorf("Spawn failed, program: %s, error: %v", name, err)

		if shouldRestart(entry.spec.Autorestart, nil, entry.stopRequested) {
			s.scheduleRespawn(entry, operation, spawnErr)
		} else {
			entry.machine.Transition(programstate.ProgramStateFatal, operation, spawnErr)
		}
		return spawnErr
	}

	entry.process = proc
	entry.logCloser = logCloser
	entry.startedAt = time.Now()

	if err := entry.machine.Transition(programstate.ProgramStateRunning, operation, nil); err != nil {
		entry.logger.Errorf("Failed to record running state, program: %s, error: %v", name, err)
	}

	go func(name string, generation int, proc *os.Process) {
		exitState, waitErr := proc.Wait()
		s.postEvent(event{kind: evExit, name: name, generation: generation, exitState: exitState, waitErr: waitErr})
	}(name, generation, proc)

	s.startHealthMonitor(entry)
	s.probeSocketReady(entry)

	entry.logger.Infof("Program running, name: %s, PID: %d, restarts: %d", name, proc.Pid, entry.restartCount)
	return nil
}

func (s *Supervisor) startHealthMonitor(entry *programEntry) {
	spec := entry.spec
	if spec.HealthCheck == nil || !spec.HealthCheck.RunOptions.Enabled {
		return
	}

	monitor := monitoring.NewHealthMonitor(spec.HealthCheck, spec.Name, entry.process.Pid, entry.logger)

	if spec.Autorestart != RestartNever {
		name := spec.Name
		monitor.SetRestartCallback(func(reason string) error {
			s.logger.Warnf("Health restart requested, program: %s, reason: %s", name, reason)
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			return s.RestartProgram(ctx, name)
		})
		monitor.SetRecoveryCallback(func() {
			s.logger.Infof("Health recovered, program: %s", name)
		})
	}

	if err := monitor.Start(context.Background()); err != nil {
		entry.logger.Warnf("Failed to start health monitor, program: %s, error: %v", spec.Name, err)
		return
	}
	entry.healthMonitor = monitor
}

func (s *Supervisor) probeSocketReady(entry *programEntry) {
	spec := entry.spec
	if spec.Socket == nil || spec.Socket.ReadyTimeout <= 0 {
		return
	}

	path := spec.Socket.Path
	name := spec.Name
	timeout := spec.Socket.ReadyTimeout
	logger := entry.logger

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := socket.WaitReady(ctx, path, 0); err != nil {
			logger.Warnf("Socket did not become ready, program: %s, path: %s, error: %v", name, path, err)
			return
		}
		logger.Infof("Socket ready, program: %s, path: %s", name, path)
	}()
}

func (s *Supervisor) handleStop(ev event) {
	entry, exists := s.programs[ev.name]
	if !exists {
		ev.reply <- errors.NewNotFoundError("program not found", nil).WithContext("program", ev.name)
		return
	}

	switch entry.machine.Current() {
	case programstate.ProgramStateStopped, programstate.ProgramStateFatal:
		// Fast-path: nothing running
		ev.reply <- nil
		return

	case programstate.ProgramStateBackoff, programstate.ProgramStateExited:
		// No process; cancel any pending respawn and settle
		if entry.respawnTimer != nil {
			entry.respawnTimer.Stop()
			entry.respawnTimer = nil
		}
		entry.machine.Transition(programstate.ProgramStateStopped, "stop", nil)
		ev.reply <- nil
		return
	}

	s.initiateStop(entry, ev.reply)
}

// initiateStop sends the stop signal to the process group and arranges kill
// escalation. Replies are delivered once the exit event is processed.
func (s *Supervisor) initiateStop(entry *programEntry, reply chan error) {
	name := entry.spec.Name

	if err := entry.machine.Transition(programstate.ProgramStateStopping, "stop", nil); err != nil {
		if reply != nil {
			reply <- err
		}
		return
	}

	entry.stopRequested = true
	if reply != nil {
		entry.stopReplies = append(entry.stopReplies, reply)
	}

	pid := entry.process.Pid
	entry.logger.Infof("Sending stop signal, program: %s, PID: %d, signal: %v", name, pid, entry.stopSignal)
	if err := process.SendSignal(pid, entry.stopSignal); err != nil {
		entry.logger.Warnf("Failed to send stop signal, program: %s, PID: %d, error: %v", name, pid, err)
	}

	stopWait := entry.spec.StopWaitTimeout
	if stopWait <= 0 {
		stopWait = s.options.DefaultStopWaitTimeout
	}
	if stopWait <= 0 {
		stopWait = 10 * time.Second
	}

	generation := entry.generation
	entry.killTimer = time.AfterFunc(stopWait, func() {
		s.postEvent(event{kind: evKillDue, name: name, generation: generation})
	})
}

func (s *Supervisor) handleKillDue(ev event) {
	entry, exists := s.programs[ev.name]
	if !exists || ev.generation != entry.generation || entry.process == nil {
		return
	}
	if entry.machine.Current() != programstate.ProgramStateStopping {
		return
	}

	pid := entry.process.Pid
	entry.logger.Warnf("Program did not exit within stop wait, escalating to kill, program: %s, PID: %d", ev.name, pid)
	if err := process.SendSignal(pid, syscall.SIGKILL); err != nil {
		entry.logger.Warnf("Failed to kill process group, PID: %d, error: %v, killing parent", pid, err)
		if err := entry.process.Kill(); err != nil {
			entry.logger.Errorf("Failed to kill process, PID: %d, error: %v", pid, err)
		}
	}
}

func (s *Supervisor) handleExit(ev event) {
	entry, exists := s.programs[ev.name]
	if !exists || ev.generation != entry.generation || entry.process == nil {
		return
	}

	uptime := time.Since(entry.startedAt)
	exitDesc := describeExit(ev.exitState, ev.waitErr)
	entry.logger.Infof("Program exited, name: %s, uptime: %v, %s", ev.name, uptime, exitDesc)

	s.cleanupAfterExit(entry)

	resetAfter := entry.spec.Backoff.ResetAfter
	if resetAfter <= 0 {
		resetAfter = defaultResetAfter
	}
	if uptime >= resetAfter {
		entry.backoff.Reset()
	}

	if entry.stopRequested || s.shutdownInitiated {
		s.settleStopped(entry)
		return
	}

	// Unexpected exit
	var cause error
	if ev.waitErr != nil {
		cause = errors.NewProcessError("process wait failed", ev.waitErr)
	} else if ev.exitState != nil && !ev.exitState.Success() {
		cause = errors.NewProcessError(exitDesc, nil)
	}
	entry.machine.Transition(programstate.ProgramStateExited, "exit", cause)

	if shouldRestart(entry.spec.Autorestart, ev.exitState, false) {
		s.scheduleRespawn(entry, "exit", cause)
	} else {
		entry.logger.Infof("Restart policy %s leaves program in exited state, name: %s", entry.spec.Autorestart, ev.name)
	}
}

// cleanupAfterExit releases per-run resources: the process handle, its log
// files, timers and the health monitor.
func (s *Supervisor) cleanupAfterExit(entry *programEntry) {
	entry.process = nil

	if entry.killTimer != nil {
		entry.killTimer.Stop()
		entry.killTimer = nil
	}
	if entry.logCloser != nil {
		if err := entry.logCloser.Close(); err != nil {
			entry.logger.Warnf("Failed to close log files, program: %s, error: %v", entry.spec.Name, err)
		}
		entry.logCloser = nil
	}
	if entry.healthMonitor != nil {
		entry.healthMonitor.Stop()
		entry.healthMonitor = nil
	}
}

// settleStopped finishes an explicit stop: STOPPED is terminal until the
// next start request, no automatic respawn happens.
func (s *Supervisor) settleStopped(entry *programEntry) {
	entry.machine.Transition(programstate.ProgramStateStopped, "stop", nil)
	entry.stopRequested = false
	entry.backoff.Reset()

	for _, reply := range entry.stopReplies {
		reply <- nil
	}
	entry.stopReplies = nil

	if entry.shutdownPending {
		entry.shutdownPending = false
		s.shutdownCount--
	}
}

// scheduleRespawn transitions to BACKOFF and arms the respawn timer, or to
// FATAL once the retry budget is exhausted.
func (s *Supervisor) scheduleRespawn(entry *programEntry, operation string, cause error) {
	name := entry.spec.Name

	delay, ok := entry.backoff.Next()
	if !ok {
		entry.logger.Errorf("Giving up on program after %d attempts, name: %s", entry.backoff.Attempts(), name)
		entry.machine.Transition(programstate.ProgramStateFatal, operation, cause)
		return
	}

	entry.machine.Transition(programstate.ProgramStateBackoff, operation, cause)
	entry.logger.Infof("Scheduling respawn, program: %s, delay: %v, attempt: %d", name, delay, entry.backoff.Attempts())

	generation := entry.generation
	entry.respawnTimer = time.AfterFunc(delay, func() {
		s.postEvent(event{kind: evRespawnDue, name: name, generation: generation})
	})
}

func (s *Supervisor) handleRespawnDue(ev event) {
	entry, exists := s.programs[ev.name]
	if !exists || ev.generation != entry.generation {
		return
	}
	if entry.machine.Current() != programstate.ProgramStateBackoff {
		return
	}

	entry.respawnTimer = nil
	entry.restartCount++

	if err := s.spawn(entry, "autorestart"); err != nil {
		entry.logger.Errorf("Respawn failed, program: %s, error: %v", ev.name, err)
	}
}

func (s *Supervisor) handleShutdown(ev event) {
	s.shutdownInitiated = true
	s.shutdownReply = ev.reply

	for _, entry := range s.programs {
		switch entry.machine.Current() {
		case programstate.ProgramStateRunning, programstate.ProgramStateStarting:
			entry.shutdownPending = true
			s.shutdownCount++
			s.initiateStop(entry, nil)

		case programstate.ProgramStateStopping:
			entry.shutdownPending = true
			s.shutdownCount++

		case programstate.ProgramStateBackoff, programstate.ProgramStateExited:
			if entry.respawnTimer != nil {
				entry.respawnTimer.Stop()
				entry.respawnTimer = nil
			}
			entry.machine.Transition(programstate.ProgramStateStopped, "stop", nil)
		}
	}

	s.logger.Infof("Shutdown initiated, programs draining: %d", s.shutdownCount)
}

func describeExit(exitState *os.ProcessState, waitErr error) string {
	if waitErr != nil {
		return fmt.Sprintf("wait error: %v", waitErr)
	}
	if exitState == nil {
		return "no exit status"
	}
	return fmt.Sprintf("status: %s", exitState.String())
}
