package eventservice

import (
	"context"

	eventdb "github.com/midoshouse/midos.house/app/modules/event/infrastructure/repositories"
	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// FakeEventRepository is a programmable stub for eventdb.Repository.
type FakeEventRepository struct {
	trace []string

	GetConfigFunc    func(ctx context.Context, id sharedtypes.EventID) (*eventtypes.EventConfig, error)
	SaveConfigFunc   func(ctx context.Context, cfg *eventtypes.EventConfig) error
	UpdateConfigFunc func(ctx context.Context, cfg *eventtypes.EventConfig) error
	ListConfigsFunc  func(ctx context.Context) ([]*eventtypes.EventConfig, error)
}

var _ eventdb.Repository = (*FakeEventRepository)(nil)

func NewFakeEventRepository() *FakeEventRepository {
	return &FakeEventRepository{trace: []string{}}
}

func (f *FakeEventRepository) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeEventRepository) record(step string) { f.trace = append(f.trace, step) }

func (f *FakeEventRepository) GetConfig(ctx context.Context, id sharedtypes.EventID) (*eventtypes.EventConfig, error) {
	f.record("GetConfig")
	if f.GetConfigFunc != nil {
		return f.GetConfigFunc(ctx, id)
	}
	return nil, eventdb.ErrEventNotFound
}

func (f *FakeEventRepository) SaveConfig(ctx context.Context, cfg *eventtypes.EventConfig) error {
	f.record("SaveConfig")
	if f.SaveConfigFunc != nil {
		return f.SaveConfigFunc(ctx, cfg)
	}
	return nil
}

func (f *FakeEventRepository) UpdateConfig(ctx context.Context, cfg *eventtypes.EventConfig) error {
	f.record("UpdateConfig")
	if f.UpdateConfigFunc != nil {
		return f.UpdateConfigFunc(ctx, cfg)
	}
	return nil
}

func (f *FakeEventRepository) ListConfigs(ctx context.Context) ([]*eventtypes.EventConfig, error) {
	f.record("ListConfigs")
	if f.ListConfigsFunc != nil {
		return f.ListConfigsFunc(ctx)
	}
	return nil, nil
}
