package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cheew/terratherm/internal/models"
	"github.com/cheew/terratherm/internal/repository"
)

// ConfigService moves output configuration between the control core and the
// persistent store. Saves happen only on the explicit save command; loads at
// boot.
type ConfigService struct {
	control *ControlService
	outputs repository.OutputConfigRepo
	events  repository.EventRepo
}

func NewConfigService(control *ControlService, outputs repository.OutputConfigRepo, events repository.EventRepo) *ConfigService {
	return &ConfigService{control: control, outputs: outputs, events: events}
}

// Save persists the full configuration of every output.
func (s *ConfigService) Save(ctx context.Context) error {
	for _, o := range s.control.ConfigSnapshot() {
		if err := s.outputs.Save(ctx, o); err != nil {
			return err
		}
	}
	if s.events != nil {
		_ = s.events.Append(ctx, models.Event{
			EventID:     uuid.NewString(),
			OccurredAt:  time.Now().UTC(),
			Type:        models.EventConfigSaved,
			Description: "output configuration saved",
		})
	}
	return nil
}

// Load applies persisted rows over the factory defaults. Outputs without a
// stored row keep their defaults.
func (s *ConfigService) Load(ctx context.Context) error {
	rows, err := s.outputs.LoadAll(ctx)
	if err != nil {
		return err
	}
	s.control.ApplyConfig(rows)
	return nil
}
