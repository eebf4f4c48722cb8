package services

import (
	"context"
	"log"
	"strings"

	"canteen-backend/internal/models"
	"canteen-backend/internal/repositories"
)

type agentSupervisor interface {
	Start(theaterID int, creds *models.AgentCredentials) error
	Stop(theaterID int) error
	Running(theaterID int) bool
}

// TheaterService manages tenants and the provisioning of their agents
type TheaterService struct {
	theaters *repositories.TheaterRepository

	supervisor agentSupervisor
}

func NewTheaterService(theaters *repositories.TheaterRepository) *TheaterService {
	return &TheaterService{theaters: theaters}
}

func (s *TheaterService) SetSupervisor(sup agentSupervisor) {
	s.supervisor = sup
}

func (s *TheaterService) Create(ctx context.Context, req *models.CreateTheaterRequest) (*models.Theater, error) {
	fields := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "required"
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		fields["code"] = "required"
	}
	if len(fields) > 0 {
		return nil, models.NewValidationError("invalid theater", fields)
	}

	t := &models.Theater{Name: strings.TrimSpace(req.Name), Code: code, Address: req.Address}
	if err := s.theaters.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TheaterService) Get(ctx context.Context, id int) (*models.Theater, error) {
	return s.theaters.Get(ctx, id)
}

func (s *TheaterService) List(ctx context.Context, activeOnly bool) ([]*models.Theater, error) {
	return s.theaters.List(ctx, activeOnly)
}

func (s *TheaterService) Update(ctx context.Context, id int, req *models.UpdateTheaterRequest) (*models.Theater, error) {
	t, err := s.theaters.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		t.Name = name
	}
	if req.Address != "" {
		t.Address = req.Address
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if err := s.theaters.Update(ctx, t); err != nil {
		return nil, err
	}
	// Deactivation takes the agent down with it
	if !t.IsActive && s.supervisor != nil && s.supervisor.Running(id) {
		if err := s.supervisor.Stop(id); err != nil {
			log.Printf("[Theaters] failed to stop agent for deactivated theater %d: %v", id, err)
		}
	}
	return t, nil
}

// ProvisionAgent stores (or replaces) a theater's agent credentials
func (s *TheaterService) ProvisionAgent(ctx context.Context, theaterID int, creds *models.AgentCredentials) error {
	fields := map[string]string{}
	if strings.TrimSpace(creds.Username) == "" {
		fields["username"] = "required"
	}
	if len(creds.Password) < 12 {
		fields["password"] = "minimum 12 characters"
	}
	if len(fields) > 0 {
		return models.NewValidationError("invalid agent credentials", fields)
	}
	if _, err := s.theaters.Get(ctx, theaterID); err != nil {
		return err
	}
	creds.TheaterID = theaterID
	return s.theaters.SetAgentCredentials(ctx, creds)
}

// StartAgent spawns the theater's agent using the stored credentials
func (s *TheaterService) StartAgent(ctx context.Context, theaterID int) error {
	if s.supervisor == nil {
		return models.NewUnavailableError("agent supervisor not running", nil)
	}
	t, err := s.theaters.Get(ctx, theaterID)
	if err != nil {
		return err
	}
	if !t.IsActive {
		return models.NewPreconditionError("theater is not active")
	}
	creds, err := s.theaters.GetAgentCredentials(ctx, theaterID)
	if err != nil {
		return err
	}
	if creds == nil || !creds.Enabled {
		return models.NewPreconditionError("no enabled agent credentials for this theater")
	}
	return s.supervisor.Start(theaterID, creds)
}

func (s *TheaterService) StopAgent(ctx context.Context, theaterID int) error {
	if s.supervisor == nil {
		return models.NewUnavailableError("agent supervisor not running", nil)
	}
	return s.supervisor.Stop(theaterID)
}

// StartProvisionedAgents boots every enabled agent of active theaters.
// Called once at startup.
func (s *TheaterService) StartProvisionedAgents(ctx context.Context) {
	if s.supervisor == nil {
		return
	}
	creds, err := s.theaters.ListAgentCredentials(ctx)
	if err != nil {
		log.Printf("[Theaters] could not list agent credentials at boot: %v", err)
		return
	}
	started := 0
	for _, c := range creds {
		if !c.Enabled {
			continue
		}
		if err := s.supervisor.Start(c.TheaterID, c); err != nil {
			log.Printf("[Theaters] boot start failed for theater %d: %v", c.TheaterID, err)
			continue
		}
		started++
	}
	log.Printf("[Theaters] started %d provisioned agents", started)
}
