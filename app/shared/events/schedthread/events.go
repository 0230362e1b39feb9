// Package threadevents defines the effect topics consumed by the scheduling
// thread adapter.
package threadevents

import (
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

const (
	ThreadCreateV1  = "schedthread.create.v1"
	MessagePostV1   = "schedthread.message.post.v1"
)

type ThreadCreatePayloadV1 struct {
	RaceID       sharedtypes.RaceID   `json:"race_id"`
	Title        string               `json:"title"`
	Content      string               `json:"content"`
	Participants []sharedtypes.UserID `json:"participants"`
}

type MessagePostPayloadV1 struct {
	Ref  sharedtypes.ThreadRef `json:"ref"`
	Text string                `json:"text"`
}
