package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen-backend/internal/auth"
	"canteen-backend/internal/config"
	"canteen-backend/internal/models"
)

// longRunner is a harmless long-lived binary that ignores our --theater flag
// by echoing it forever, which doubles as a heartbeat source. GNU yes rejects
// unknown --flags, so a tiny shell script stands in for it.
var longRunner = filepath.Join(os.TempDir(), "supervisor-test-longrunner.sh")

const longRunnerScript = "#!/bin/sh\nwhile :; do echo heartbeat; sleep 0.01; done\n"

func supervisorTestConfig(t *testing.T, binary string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpirationHours = 1
	cfg.JWT.Issuer = "canteen-backend"
	cfg.Agent.ConfigDir = t.TempDir()
	cfg.Agent.BinaryPath = binary
	cfg.Agent.BackendURL = "ws://127.0.0.1:8080"
	cfg.Agent.PrintServiceURL = "http://127.0.0.1:5000"
	cfg.Agent.HeartbeatTimeout = 2 * time.Minute
	cfg.Agent.MonitorInterval = 50 * time.Millisecond
	cfg.Agent.StaleRestartWait = time.Hour
	cfg.Agent.CrashRestartWait = time.Hour
	return cfg
}

func requireLongRunner(t *testing.T) {
	t.Helper()
	if err := os.WriteFile(longRunner, []byte(longRunnerScript), 0o755); err != nil {
		t.Skipf("%s not available: %v", longRunner, err)
	}
}

func testCreds(theaterID int) *models.AgentCredentials {
	return &models.AgentCredentials{
		TheaterID: theaterID,
		Username:  "agent-pvr-1",
		Password:  "s3cret",
		PIN:       "4321",
		Label:     "Lobby counter",
		Enabled:   true,
	}
}

func TestStartRequiresCredentials(t *testing.T) {
	cfg := supervisorTestConfig(t, longRunner)
	s := NewSupervisor(cfg, auth.NewJWTManager(cfg))
	defer s.Shutdown()

	err := s.Start(1, nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrValidation, models.AsAppError(err).Kind)
	assert.False(t, s.Running(1))
}

func TestStartSpawnFailureUnregisters(t *testing.T) {
	cfg := supervisorTestConfig(t, filepath.Join(t.TempDir(), "missing-binary"))
	s := NewSupervisor(cfg, auth.NewJWTManager(cfg))
	defer s.Shutdown()

	err := s.Start(1, testCreds(1))
	require.Error(t, err)
	assert.False(t, s.Running(1))
	assert.Empty(t, s.Status())
}

func TestOneAgentPerTheater(t *testing.T) {
	requireLongRunner(t)
	cfg := supervisorTestConfig(t, longRunner)
	s := NewSupervisor(cfg, auth.NewJWTManager(cfg))
	defer s.Shutdown()

	require.NoError(t, s.Start(1, testCreds(1)))
	assert.True(t, s.Running(1))

	status := s.Status()
	require.Len(t, status, 1)
	firstPID := status[0].PID
	assert.NotZero(t, firstPID)

	// Second start is a no-op, not a second subprocess
	require.NoError(t, s.Start(1, testCreds(1)))
	status = s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, firstPID, status[0].PID)
}

func TestStopTerminatesAndForgets(t *testing.T) {
	requireLongRunner(t)
	cfg := supervisorTestConfig(t, longRunner)
	s := NewSupervisor(cfg, auth.NewJWTManager(cfg))
	defer s.Shutdown()

	require.NoError(t, s.Start(7, testCreds(7)))
	require.True(t, s.Running(7))

	require.NoError(t, s.Stop(7))
	assert.False(t, s.Running(7))

	err := s.Stop(7)
	require.Error(t, err)
	assert.Equal(t, models.ErrNotFound, models.AsAppError(err).Kind)
}

func TestStatusReportsHealthyHeartbeat(t *testing.T) {
	requireLongRunner(t)
	cfg := supervisorTestConfig(t, longRunner)
	s := NewSupervisor(cfg, auth.NewJWTManager(cfg))
	defer s.Shutdown()

	require.NoError(t, s.Start(1, testCreds(1)))

	// yes floods stdout, so the heartbeat stays fresh
	time.Sleep(100 * time.Millisecond)
	status := s.Status()
	require.Len(t, status, 1)
	assert.True(t, status[0].Healthy)
	assert.False(t, status[0].LastHeartbeat.IsZero())
}

func TestConfigFileMirrorsRegistry(t *testing.T) {
	requireLongRunner(t)
	cfg := supervisorTestConfig(t, longRunner)
	s := NewSupervisor(cfg, auth.NewJWTManager(cfg))
	defer s.Shutdown()

	require.NoError(t, s.Start(3, testCreds(3)))

	path := filepath.Join(cfg.Agent.ConfigDir, "agent-config.json")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var file struct {
		BackendURL string `json:"backendUrl"`
		Agents     []struct {
			TheaterID int    `json:"theaterId"`
			Username  string `json:"username"`
			Password  string `json:"password"`
		} `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(data, &file))
	assert.Equal(t, "ws://127.0.0.1:8080", file.BackendURL)
	require.Len(t, file.Agents, 1)
	assert.Equal(t, 3, file.Agents[0].TheaterID)
	assert.Equal(t, "agent-pvr-1", file.Agents[0].Username)
	assert.Equal(t, "s3cret", file.Agents[0].Password)
}

func TestShutdownClearsRegistry(t *testing.T) {
	requireLongRunner(t)
	cfg := supervisorTestConfig(t, longRunner)
	s := NewSupervisor(cfg, auth.NewJWTManager(cfg))

	require.NoError(t, s.Start(1, testCreds(1)))
	require.NoError(t, s.Start(2, testCreds(2)))

	s.Shutdown()
	assert.False(t, s.Running(1))
	assert.False(t, s.Running(2))
	assert.Empty(t, s.Status())
}
