package eventservice

import (
	"context"

	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// Service defines the event configuration operations.
type Service interface {
	CreateConfig(ctx context.Context, cfg *eventtypes.EventConfig) (results.OperationResult, error)
	UpdateConfig(ctx context.Context, cfg *eventtypes.EventConfig) (results.OperationResult, error)
	GetConfig(ctx context.Context, id sharedtypes.EventID) (results.OperationResult, error)
}
