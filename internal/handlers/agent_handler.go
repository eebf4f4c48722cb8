package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"canteen-backend/internal/agent"
	"canteen-backend/internal/middleware"
	"canteen-backend/internal/services"
	"canteen-backend/pkg/utils"
)

var agentUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Agents authenticate with a token; origin checks do not apply
	CheckOrigin: func(r *http.Request) bool { return true },
}

type AgentHandler struct {
	hub        *agent.Hub
	supervisor *agent.Supervisor
	theaters   *services.TheaterService
}

func NewAgentHandler(hub *agent.Hub, supervisor *agent.Supervisor, theaters *services.TheaterService) *AgentHandler {
	return &AgentHandler{hub: hub, supervisor: supervisor, theaters: theaters}
}

// Websocket is the agent's delivery channel. One connection per theater; a
// new connection replaces the previous one.
// GET /api/agent/ws
func (h *AgentHandler) Websocket(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := middleware.GetAgentTheaterIDFromContext(r.Context())
	if !ok {
		utils.ErrorStatus(w, http.StatusUnauthorized, "agent token required")
		return
	}

	ws, err := agentUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Agent] websocket upgrade failed for theater %d: %v", theaterID, err)
		return
	}

	log.Printf("[Agent] theater %d connected", theaterID)
	h.hub.Attach(theaterID, ws)
	log.Printf("[Agent] theater %d disconnected", theaterID)
}

// Start launches the agent subprocess for a theater
// POST /api/theaters/{id}/agent/start
func (h *AgentHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	if err := h.theaters.StartAgent(r.Context(), id); err != nil {
		utils.Error(w, err)
		return
	}
	utils.Message(w, http.StatusOK, "agent started")
}

// Stop terminates the agent subprocess for a theater
// POST /api/theaters/{id}/agent/stop
func (h *AgentHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	if err := h.theaters.StopAgent(r.Context(), id); err != nil {
		utils.Error(w, err)
		return
	}
	utils.Message(w, http.StatusOK, "agent stopped")
}

// Status reports every supervised agent plus websocket connectivity
// GET /api/agents/status
func (h *AgentHandler) Status(w http.ResponseWriter, r *http.Request) {
	statuses := h.supervisor.Status()
	connected := h.hub.ConnectedTheaters()
	connSet := make(map[int]bool, len(connected))
	for _, id := range connected {
		connSet[id] = true
	}

	type agentView struct {
		agent.AgentStatus
		Connected bool `json:"connected"`
	}
	out := make([]agentView, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, agentView{AgentStatus: st, Connected: connSet[st.TheaterID]})
	}
	utils.JSON(w, http.StatusOK, out)
}
