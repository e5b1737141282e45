package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cheew/terratherm/internal/models"
)

type fakeOutputRepo struct {
	saved   []models.Output
	rows    []models.Output
	saveErr error
	loadErr error
}

func (f *fakeOutputRepo) Save(ctx context.Context, o models.Output) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, o)
	return nil
}

func (f *fakeOutputRepo) Load(ctx context.Context, index int) (models.Output, error) {
	for _, o := range f.rows {
		if o.Index == index {
			return o, nil
		}
	}
	return models.Output{}, errors.New("not found")
}

func (f *fakeOutputRepo) LoadAll(ctx context.Context) ([]models.Output, error) {
	return f.rows, f.loadErr
}

func TestConfigService_SavePersistsEveryOutput(t *testing.T) {
	c, _, _, events := newControlFixture(t, 25.0)
	repo := &fakeOutputRepo{}
	svc := NewConfigService(c, repo, events)
	ctx := context.Background()

	if err := svc.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(repo.saved) != models.NumOutputs {
		t.Fatalf("expected %d rows, got %d", models.NumOutputs, len(repo.saved))
	}

	got, _ := events.List(ctx, time.Time{}, time.Time{}, models.EventConfigSaved)
	if len(got) != 1 {
		t.Fatalf("expected one config saved event, got %d", len(got))
	}
}

func TestConfigService_SaveStopsOnRepoError(t *testing.T) {
	c, _, _, _ := newControlFixture(t, 25.0)
	repo := &fakeOutputRepo{saveErr: errors.New("disk full")}
	svc := NewConfigService(c, repo, nil)

	if err := svc.Save(context.Background()); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestConfigService_LoadAppliesRowsOverDefaults(t *testing.T) {
	c, _, _, _ := newControlFixture(t, 25.0)
	row := defaultOutput(2)
	row.Enabled = true
	row.Name = "Humid Hide"
	row.Device = models.DeviceFogger
	row.TargetC = 24.0
	repo := &fakeOutputRepo{rows: []models.Output{row}}
	svc := NewConfigService(c, repo, nil)

	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	o, err := c.Output(2)
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	if !o.Enabled || o.Name != "Humid Hide" || o.Device != models.DeviceFogger || o.TargetC != 24.0 {
		t.Fatalf("persisted row not applied: %+v", o)
	}
	// Outputs without a stored row keep factory defaults.
	if o0, _ := c.Output(0); o0.Name != "Basking Light" {
		t.Fatalf("untouched output mutated: %+v", o0)
	}
}

func TestConfigService_LoadPropagatesError(t *testing.T) {
	c, _, _, _ := newControlFixture(t, 25.0)
	repo := &fakeOutputRepo{loadErr: errors.New("db closed")}
	svc := NewConfigService(c, repo, nil)

	if err := svc.Load(context.Background()); err == nil {
		t.Fatalf("expected error, got nil")
	}
}
