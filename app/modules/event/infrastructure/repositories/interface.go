package eventdb

import (
	"context"
	"errors"

	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// ErrEventNotFound indicates no configuration exists for the event slug.
var ErrEventNotFound = errors.New("event config not found")

// Repository stores per-event configuration records.
type Repository interface {
	GetConfig(ctx context.Context, id sharedtypes.EventID) (*eventtypes.EventConfig, error)
	SaveConfig(ctx context.Context, cfg *eventtypes.EventConfig) error
	UpdateConfig(ctx context.Context, cfg *eventtypes.EventConfig) error
	ListConfigs(ctx context.Context) ([]*eventtypes.EventConfig, error)
}
