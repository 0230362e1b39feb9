// Package schedevents defines the inbound topics of the scheduling thread:
// thread creation acknowledgements and raw messages awaiting command parsing.
package schedevents

import (
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

const (
	ThreadCreatedV1         = "thread.created.v1"
	ThreadCreationFailedV1  = "thread.creation.failed.v1"
	ThreadMessageReceivedV1 = "thread.message.received.v1"
)

type ThreadCreatedPayloadV1 struct {
	RaceID sharedtypes.RaceID    `json:"race_id"`
	Ref    sharedtypes.ThreadRef `json:"ref"`
}

type ThreadCreationFailedPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	Reason string             `json:"reason"`
}

type ThreadMessageReceivedPayloadV1 struct {
	Ref        sharedtypes.ThreadRef `json:"ref"`
	AuthorID   sharedtypes.UserID    `json:"author_id"`
	AuthorName string                `json:"author_name"`
	Text       string                `json:"text"`
}
