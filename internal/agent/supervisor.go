package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"canteen-backend/internal/auth"
	"canteen-backend/internal/config"
	"canteen-backend/internal/metrics"
	"canteen-backend/internal/models"
	"canteen-backend/internal/timeutil"
)

// AgentStatus is the operator-visible view of one supervised agent
type AgentStatus struct {
	TheaterID     int       `json:"theater_id"`
	PID           int       `json:"pid"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Healthy       bool      `json:"healthy"`
	Restarts      int       `json:"restarts"`
}

type supervised struct {
	theaterID     int
	cmd           *exec.Cmd
	creds         *models.AgentCredentials
	startedAt     time.Time
	lastHeartbeat time.Time
	restarts      int
	stopping      bool // operator stop: suppress the crash-restart path
}

// Supervisor keeps exactly one live agent subprocess per active theater.
// It is an explicit lifecycle object; nothing here is package-level state.
// The registry mutex is held only for map reads and writes, never across a
// spawn or a wait.
type Supervisor struct {
	cfg *config.Config
	jwt *auth.JWTManager

	mu     sync.Mutex
	agents map[int]*supervised

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewSupervisor(cfg *config.Config, jwt *auth.JWTManager) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:    cfg,
		jwt:    jwt,
		agents: make(map[int]*supervised),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run starts the staleness monitor. Call once at boot.
func (s *Supervisor) Run() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.monitor()
	log.Printf("[Agents] supervisor running (monitor every %s, stale after %s)",
		s.cfg.Agent.MonitorInterval, s.cfg.Agent.HeartbeatTimeout)
}

// Start spawns the agent for a theater. Idempotent: a live or pending agent
// makes this a no-op.
func (s *Supervisor) Start(theaterID int, creds *models.AgentCredentials) error {
	if creds == nil {
		return models.NewValidationError("agent credentials are required", nil)
	}

	s.mu.Lock()
	if _, ok := s.agents[theaterID]; ok {
		s.mu.Unlock()
		return nil
	}
	// Reserve the slot before spawning so concurrent starts collapse
	entry := &supervised{theaterID: theaterID, creds: creds}
	s.agents[theaterID] = entry
	s.mu.Unlock()

	if err := s.writeConfigFile(); err != nil {
		// The agent reads credentials from its environment; the file is
		// informational for on-site tooling.
		log.Printf("[Agents] config file write failed: %v", err)
	}

	if err := s.spawn(entry); err != nil {
		s.mu.Lock()
		delete(s.agents, theaterID)
		s.mu.Unlock()
		return err
	}
	return nil
}

// spawn launches the subprocess and wires heartbeat scanning and the exit
// watcher. The registry entry must already exist.
func (s *Supervisor) spawn(entry *supervised) error {
	token, err := s.jwt.GenerateAgentToken(entry.theaterID, entry.creds.Username)
	if err != nil {
		return models.NewInternalError("failed to mint agent token", err)
	}

	binary := s.cfg.Agent.BinaryPath
	args := []string{fmt.Sprintf("--theater=%d", entry.theaterID)}
	if binary == "" {
		binary, err = os.Executable()
		if err != nil {
			return models.NewInternalError("cannot locate agent binary", err)
		}
		args = append([]string{"--agent"}, args...)
	}

	cmd := exec.Command(binary, args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("AGENT_THEATER_ID=%d", entry.theaterID),
		"AGENT_USERNAME="+entry.creds.Username,
		"AGENT_PASSWORD="+entry.creds.Password,
		"AGENT_PIN="+entry.creds.PIN,
		"AGENT_TOKEN="+token,
		"AGENT_BACKEND_URL="+s.cfg.Agent.BackendURL,
		"AGENT_PRINT_SERVICE_URL="+s.cfg.Agent.PrintServiceURL,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return models.NewInternalError("agent stdout pipe failed", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return models.NewInternalError("agent stderr pipe failed", err)
	}

	if err := cmd.Start(); err != nil {
		return models.NewUnavailableError("agent spawn failed", err)
	}

	now := timeutil.Now()
	s.mu.Lock()
	entry.cmd = cmd
	entry.startedAt = now
	entry.lastHeartbeat = now
	s.mu.Unlock()

	metrics.AgentsRunning.Inc()
	log.Printf("[Agents] started agent (theater=%d pid=%d)", entry.theaterID, cmd.Process.Pid)

	s.wg.Add(3)
	go s.scanOutput(entry, stdout)
	go s.scanOutput(entry, stderr)
	go s.watchExit(entry, cmd)
	return nil
}

// scanOutput treats every subprocess output line as a heartbeat
func (s *Supervisor) scanOutput(entry *supervised, pipe interface{ Read([]byte) (int, error) }) {
	defer s.wg.Done()
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 64*1024), 256*1024)
	for scanner.Scan() {
		s.mu.Lock()
		entry.lastHeartbeat = timeutil.Now()
		s.mu.Unlock()
	}
}

// watchExit handles subprocess termination and the crash-restart policy
func (s *Supervisor) watchExit(entry *supervised, cmd *exec.Cmd) {
	defer s.wg.Done()
	err := cmd.Wait()
	metrics.AgentsRunning.Dec()

	s.mu.Lock()
	current := s.agents[entry.theaterID]
	stopping := entry.stopping
	creds := entry.creds
	restarts := entry.restarts
	if current == entry {
		delete(s.agents, entry.theaterID)
	}
	s.mu.Unlock()

	if stopping || current != entry {
		return
	}

	exitClean := err == nil
	if exitClean {
		log.Printf("[Agents] agent exited cleanly (theater=%d)", entry.theaterID)
		return
	}

	log.Printf("[Agents] agent crashed (theater=%d): %v, restarting in %s",
		entry.theaterID, err, s.cfg.Agent.CrashRestartWait)
	metrics.AgentRestarts.WithLabelValues("crash").Inc()
	s.scheduleRestart(entry.theaterID, creds, s.cfg.Agent.CrashRestartWait, restarts+1)
}

func (s *Supervisor) scheduleRestart(theaterID int, creds *models.AgentCredentials, wait time.Duration, restarts int) {
	if creds == nil {
		log.Printf("[Agents] no stored credentials for theater %d, not restarting", theaterID)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(wait):
		}
		s.mu.Lock()
		if _, ok := s.agents[theaterID]; ok {
			s.mu.Unlock()
			return
		}
		entry := &supervised{theaterID: theaterID, creds: creds, restarts: restarts}
		s.agents[theaterID] = entry
		s.mu.Unlock()

		if err := s.spawn(entry); err != nil {
			log.Printf("[Agents] restart failed (theater=%d): %v", theaterID, err)
			s.mu.Lock()
			delete(s.agents, theaterID)
			s.mu.Unlock()
		}
	}()
}

// monitor terminates agents whose heartbeat has gone stale and reschedules
// them with the stored credentials.
func (s *Supervisor) monitor() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Agent.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		now := timeutil.Now()
		var stale []*supervised
		s.mu.Lock()
		for _, entry := range s.agents {
			if entry.cmd == nil {
				continue
			}
			if now.Sub(entry.lastHeartbeat) > s.cfg.Agent.HeartbeatTimeout {
				stale = append(stale, entry)
				entry.stopping = true
			}
		}
		s.mu.Unlock()

		for _, entry := range stale {
			log.Printf("[Agents] heartbeat stale (theater=%d, last %s ago), restarting",
				entry.theaterID, now.Sub(entry.lastHeartbeat).Round(time.Second))
			metrics.AgentRestarts.WithLabelValues("stale").Inc()
			entry.cmd.Process.Kill()

			s.mu.Lock()
			if s.agents[entry.theaterID] == entry {
				delete(s.agents, entry.theaterID)
			}
			creds := entry.creds
			restarts := entry.restarts
			s.mu.Unlock()

			s.scheduleRestart(entry.theaterID, creds, s.cfg.Agent.StaleRestartWait, restarts+1)
		}
	}
}

// Stop gracefully terminates one theater's agent and forgets it
func (s *Supervisor) Stop(theaterID int) error {
	s.mu.Lock()
	entry, ok := s.agents[theaterID]
	if ok {
		entry.stopping = true
		delete(s.agents, theaterID)
	}
	s.mu.Unlock()

	if !ok {
		return models.NewNotFoundError("agent")
	}
	if entry.cmd != nil && entry.cmd.Process != nil {
		if err := entry.cmd.Process.Signal(os.Interrupt); err != nil {
			entry.cmd.Process.Kill()
		}
	}
	log.Printf("[Agents] stopped agent (theater=%d)", theaterID)
	return s.writeConfigFile()
}

// Status snapshots the registry
func (s *Supervisor) Status() []AgentStatus {
	now := timeutil.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]AgentStatus, 0, len(s.agents))
	for _, entry := range s.agents {
		st := AgentStatus{
			TheaterID:     entry.theaterID,
			StartedAt:     entry.startedAt,
			LastHeartbeat: entry.lastHeartbeat,
			Healthy:       now.Sub(entry.lastHeartbeat) < s.cfg.Agent.HeartbeatTimeout,
			Restarts:      entry.restarts,
		}
		if entry.cmd != nil && entry.cmd.Process != nil {
			st.PID = entry.cmd.Process.Pid
			st.UptimeSeconds = int64(now.Sub(entry.startedAt).Seconds())
		}
		out = append(out, st)
	}
	return out
}

// Running reports whether a theater has a registered agent process
func (s *Supervisor) Running(theaterID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.agents[theaterID]
	return ok
}

// Shutdown kills every agent and stops the monitor
func (s *Supervisor) Shutdown() {
	s.cancel()

	s.mu.Lock()
	entries := make([]*supervised, 0, len(s.agents))
	for _, entry := range s.agents {
		entry.stopping = true
		entries = append(entries, entry)
	}
	s.agents = make(map[int]*supervised)
	s.mu.Unlock()

	for _, entry := range entries {
		if entry.cmd != nil && entry.cmd.Process != nil {
			entry.cmd.Process.Signal(os.Interrupt)
		}
	}
	s.wg.Wait()
	log.Printf("[Agents] supervisor shut down (%d agents terminated)", len(entries))
}

// agentConfigFile mirrors the on-disk JSON read by on-site tooling
type agentConfigFile struct {
	BackendURL string             `json:"backendUrl"`
	Agents     []agentConfigEntry `json:"agents"`
}

type agentConfigEntry struct {
	TheaterID int    `json:"theaterId"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	PIN       string `json:"pin,omitempty"`
	Label     string `json:"label"`
	Enabled   bool   `json:"enabled"`
}

// writeConfigFile dumps the current registry's credentials to the
// well-known path under the agent config dir.
func (s *Supervisor) writeConfigFile() error {
	s.mu.Lock()
	file := agentConfigFile{BackendURL: s.cfg.Agent.BackendURL}
	for _, entry := range s.agents {
		file.Agents = append(file.Agents, agentConfigEntry{
			TheaterID: entry.theaterID,
			Username:  entry.creds.Username,
			Password:  entry.creds.Password,
			PIN:       entry.creds.PIN,
			Label:     entry.creds.Label,
			Enabled:   entry.creds.Enabled,
		})
	}
	s.mu.Unlock()

	dir := s.cfg.Agent.ConfigDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "agent-config.json"), data, 0o600)
}
