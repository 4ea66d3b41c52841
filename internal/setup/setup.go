// Package setup registers new installations and edits their options.
package setup

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jgoulah/mindergas/internal/config"
	"github.com/jgoulah/mindergas/internal/database"
	"github.com/jgoulah/mindergas/internal/mindergas"
	"github.com/jgoulah/mindergas/pkg/models"
)

var (
	// ErrAlreadyConfigured is returned when the API key is already in use
	ErrAlreadyConfigured = errors.New("API key is already configured")
	// ErrInvalidAuth is returned when MinderGas rejects the API key
	ErrInvalidAuth = errors.New("invalid authentication")
	// ErrCannotConnect is returned when MinderGas could not be reached
	ErrCannotConnect = errors.New("cannot connect")
)

// Store persists installations
type Store interface {
	FindInstallationByAPIKey(apiKey string) (*models.Installation, error)
	InsertInstallation(inst *models.Installation) error
	GetInstallation(id uuid.UUID) (*models.Installation, error)
	UpdateInstallation(inst *models.Installation) error
}

// Validator checks an API key against MinderGas
type Validator func(ctx context.Context, apiKey string) error

// ClientValidator validates keys with a fresh client built by newClient
func ClientValidator(newClient func(apiKey string) *mindergas.Client) Validator {
	return func(ctx context.Context, apiKey string) error {
		c := newClient(apiKey)
		defer c.Close()
		return c.Validate(ctx)
	}
}

// Register validates inst, checks the key with MinderGas and stores it
// under a new ID
func Register(ctx context.Context, store Store, validate Validator, inst models.Installation) (*models.Installation, error) {
	config.ApplyDefaults(&inst)
	if err := config.ValidateInstallation(inst); err != nil {
		return nil, err
	}

	existing, err := store.FindInstallationByAPIKey(inst.APIKey)
	if err != nil {
		return nil, fmt.Errorf("checking existing installations: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyConfigured
	}

	if err := validate(ctx, inst.APIKey); err != nil {
		if errors.Is(err, mindergas.ErrCannotConnect) {
			return nil, fmt.Errorf("%w: %w", ErrCannotConnect, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidAuth, err)
	}

	inst.ID = uuid.New()
	if err := store.InsertInstallation(&inst); err != nil {
		if errors.Is(err, database.ErrDuplicateAPIKey) {
			return nil, ErrAlreadyConfigured
		}
		return nil, fmt.Errorf("saving installation: %w", err)
	}
	return &inst, nil
}

// Options are the editable settings of an installation. Nil fields keep
// their current value.
type Options struct {
	Name              *string
	PostMeterReading  *bool
	PostMeterEntityID *string
	RandomizePostTime *bool
	PostTime          *string
	UpdateStats       *bool
	UpdateTime        *string
	UpdateJitter      *int
}

// Configure applies opts to the stored installation id
func Configure(store Store, id uuid.UUID, opts Options) (*models.Installation, error) {
	inst, err := store.GetInstallation(id)
	if err != nil {
		return nil, err
	}

	if opts.Name != nil {
		inst.Name = *opts.Name
	}
	if opts.PostMeterReading != nil {
		inst.PostMeterReading = *opts.PostMeterReading
	}
	if opts.PostMeterEntityID != nil {
		inst.PostMeterEntityID = *opts.PostMeterEntityID
	}
	if opts.RandomizePostTime != nil {
		inst.RandomizePostTime = *opts.RandomizePostTime
	}
	if opts.PostTime != nil {
		inst.PostTime = *opts.PostTime
	}
	if opts.UpdateStats != nil {
		inst.UpdateStats = *opts.UpdateStats
	}
	if opts.UpdateTime != nil {
		inst.UpdateTime = *opts.UpdateTime
	}
	if opts.UpdateJitter != nil {
		inst.UpdateJitter = *opts.UpdateJitter
	}

	config.ApplyDefaults(inst)
	if err := config.ValidateInstallation(*inst); err != nil {
		return nil, err
	}

	if err := store.UpdateInstallation(inst); err != nil {
		return nil, fmt.Errorf("saving installation: %w", err)
	}
	return inst, nil
}
