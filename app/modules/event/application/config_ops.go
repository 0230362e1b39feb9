package eventservice

import (
	"context"
	"errors"
	"fmt"

	configevents "github.com/midoshouse/midos.house/app/shared/events/config"
	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"

	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
)

// CreateConfig validates and stores a new event configuration.
func (s *EventService) CreateConfig(ctx context.Context, cfg *eventtypes.EventConfig) (results.OperationResult, error) {
	id := eventID(cfg)
	return s.withTelemetry(ctx, "create_event_config", id, func(ctx context.Context) (results.OperationResult, error) {
		if err := validateConfig(cfg); err != nil {
			return creationFailure(id, err), nil
		}
		if _, err := s.repo.GetConfig(ctx, cfg.ID); err == nil {
			return creationFailure(id, fmt.Errorf("event %q already configured", cfg.ID)), nil
		} else if !errors.Is(err, eventdb.ErrEventNotFound) {
			return results.OperationResult{}, err
		}
		if err := s.repo.SaveConfig(ctx, cfg); err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(&configevents.CreatedPayloadV1{EventID: cfg.ID, Config: *cfg}), nil
	})
}

// UpdateConfig validates and replaces an existing configuration.
func (s *EventService) UpdateConfig(ctx context.Context, cfg *eventtypes.EventConfig) (results.OperationResult, error) {
	id := eventID(cfg)
	return s.withTelemetry(ctx, "update_event_config", id, func(ctx context.Context) (results.OperationResult, error) {
		if err := validateConfig(cfg); err != nil {
			return results.FailureResult(&configevents.UpdateFailedPayloadV1{EventID: id, Reason: err.Error()}), nil
		}
		if err := s.repo.UpdateConfig(ctx, cfg); err != nil {
			if errors.Is(err, eventdb.ErrEventNotFound) {
				return results.FailureResult(&configevents.UpdateFailedPayloadV1{EventID: id, Reason: "event not found"}), nil
			}
			return results.OperationResult{}, err
		}
		return results.SuccessResult(&configevents.UpdatedPayloadV1{EventID: cfg.ID, Config: *cfg}), nil
	})
}

// GetConfig retrieves a configuration.
func (s *EventService) GetConfig(ctx context.Context, id sharedtypes.EventID) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "get_event_config", id, func(ctx context.Context) (results.OperationResult, error) {
		cfg, err := s.repo.GetConfig(ctx, id)
		if err != nil {
			if errors.Is(err, eventdb.ErrEventNotFound) {
				return results.FailureResult(&configevents.RetrievalFailedPayloadV1{EventID: id, Reason: "event not found"}), nil
			}
			return results.OperationResult{}, err
		}
		return results.SuccessResult(&configevents.RetrievedPayloadV1{Config: *cfg}), nil
	})
}

func eventID(cfg *eventtypes.EventConfig) sharedtypes.EventID {
	if cfg == nil {
		return ""
	}
	return cfg.ID
}

func creationFailure(id sharedtypes.EventID, err error) results.OperationResult {
	return results.FailureResult(&configevents.CreationFailedPayloadV1{EventID: id, Reason: err.Error()})
}

// validateConfig checks the structural rules of a configuration, in
// particular that the draft layout is internally consistent.
func validateConfig(cfg *eventtypes.EventConfig) error {
	if cfg == nil {
		return errors.New("config payload is nil")
	}
	if cfg.ID == "" {
		return errors.New("event id required")
	}
	if cfg.DisplayName == "" {
		return errors.New("display name required")
	}
	if cfg.GameCount < 1 {
		return errors.New("game count must be at least 1")
	}
	for _, w := range cfg.Blackouts {
		if !w.To.After(w.From) {
			return fmt.Errorf("blackout window [%s, %s) is empty", w.From, w.To)
		}
	}
	if cfg.Draft == nil {
		return nil
	}

	seen := map[string]bool{}
	for _, setting := range cfg.Draft.Settings {
		if setting.Name == "" {
			return errors.New("draft setting with empty name")
		}
		if seen[setting.Name] {
			return fmt.Errorf("duplicate draft setting %q", setting.Name)
		}
		seen[setting.Name] = true
		if len(setting.Options) == 0 {
			return fmt.Errorf("draft setting %q has no options", setting.Name)
		}
		defaultLegal := false
		for _, o := range setting.Options {
			if o.Value == "" {
				return fmt.Errorf("draft setting %q has an empty option", setting.Name)
			}
			if o.Value == setting.Default {
				defaultLegal = true
			}
		}
		if !defaultLegal {
			return fmt.Errorf("draft setting %q default %q is not among its options", setting.Name, setting.Default)
		}
	}
	for i, step := range cfg.Draft.Steps {
		switch step.Kind {
		case eventtypes.StepBan, eventtypes.StepPick:
		case eventtypes.StepChoice:
			if !seen[step.Setting] {
				return fmt.Errorf("draft step %d references unknown setting %q", i, step.Setting)
			}
		case eventtypes.StepGoFirst:
			return fmt.Errorf("draft step %d: go-first is configured via opening_choice, not a step", i)
		default:
			return fmt.Errorf("draft step %d has unknown kind %q", i, step.Kind)
		}
		if step.Seat != 0 && step.Seat != 1 {
			return fmt.Errorf("draft step %d has invalid seat %d", i, step.Seat)
		}
	}
	return nil
}
