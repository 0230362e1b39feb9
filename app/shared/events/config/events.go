// Package configevents defines the CRUD topics for per-event configuration.
package configevents

import (
	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

const (
	EventConfigCreateRequestedV1    = "event.config.create.requested.v1"
	EventConfigCreatedV1            = "event.config.created.v1"
	EventConfigCreationFailedV1     = "event.config.creation.failed.v1"
	EventConfigUpdateRequestedV1    = "event.config.update.requested.v1"
	EventConfigUpdatedV1            = "event.config.updated.v1"
	EventConfigUpdateFailedV1       = "event.config.update.failed.v1"
	EventConfigRetrievalRequestedV1 = "event.config.retrieval.requested.v1"
	EventConfigRetrievedV1          = "event.config.retrieved.v1"
	EventConfigRetrievalFailedV1    = "event.config.retrieval.failed.v1"
)

type CreateRequestedPayloadV1 struct {
	Config eventtypes.EventConfig `json:"config"`
}

type CreatedPayloadV1 struct {
	EventID sharedtypes.EventID    `json:"event_id"`
	Config  eventtypes.EventConfig `json:"config"`
}

type CreationFailedPayloadV1 struct {
	EventID sharedtypes.EventID `json:"event_id"`
	Reason  string              `json:"reason"`
}

type UpdateRequestedPayloadV1 struct {
	Config eventtypes.EventConfig `json:"config"`
}

type UpdatedPayloadV1 struct {
	EventID sharedtypes.EventID    `json:"event_id"`
	Config  eventtypes.EventConfig `json:"config"`
}

type UpdateFailedPayloadV1 struct {
	EventID sharedtypes.EventID `json:"event_id"`
	Reason  string              `json:"reason"`
}

type RetrievalRequestedPayloadV1 struct {
	EventID sharedtypes.EventID `json:"event_id"`
}

type RetrievedPayloadV1 struct {
	Config eventtypes.EventConfig `json:"config"`
}

type RetrievalFailedPayloadV1 struct {
	EventID sharedtypes.EventID `json:"event_id"`
	Reason  string              `json:"reason"`
}
