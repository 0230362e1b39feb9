// Package racechatevents defines the effect topics consumed by the race-room
// chat adapter: room creation, re-attachment after restart, and messages.
package racechatevents

import (
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

const (
	RoomCreateV1  = "racechat.room.create.v1"
	RoomAttachV1  = "racechat.room.attach.v1"
	MessageSendV1 = "racechat.message.send.v1"
)

// RoomConfigV1 is the chat-service room configuration.
type RoomConfigV1 struct {
	Goal              string               `json:"goal"`
	Info              string               `json:"info"`
	Unlisted          bool                 `json:"unlisted"`
	AutoStart         bool                 `json:"auto_start"`
	StreamingRequired bool                 `json:"streaming_required"`
	InviteUserIDs     []sharedtypes.UserID `json:"invite_user_ids"`
}

type RoomCreatePayloadV1 struct {
	RaceID  sharedtypes.RaceID   `json:"race_id"`
	Kind    sharedtypes.RoomKind `json:"kind"`
	Attempt int                  `json:"attempt"`
	Config  RoomConfigV1         `json:"config"`
}

type RoomAttachPayloadV1 struct {
	RaceID sharedtypes.RaceID     `json:"race_id"`
	Kind   sharedtypes.RoomKind   `json:"kind"`
	Handle sharedtypes.RoomHandle `json:"handle"`
}

type MessageSendPayloadV1 struct {
	Handle sharedtypes.RoomHandle `json:"handle"`
	Text   string                 `json:"text"`
	Pin    bool                   `json:"pin"`
}
