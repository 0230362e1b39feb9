// Package seedevents defines the topics and payloads of seed orchestration:
// roll deadlines, generator outcomes, attachment, and spoiler unlocking.
package seedevents

import (
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

const (
	SeedRollDueV1       = "seed.roll.due.v1"
	SeedRolledV1        = "seed.rolled.v1"
	SeedRollFailedV1    = "seed.roll.failed.v1"
	SeedRollAbandonedV1 = "seed.roll.abandoned.v1"
	SeedAttachedV1      = "seed.attached.v1"
	SpoilerUnlockedV1   = "seed.spoiler.unlocked.v1"
)

type RollDuePayloadV1 struct {
	RaceID  sharedtypes.RaceID `json:"race_id"`
	Attempt int                `json:"attempt"`
}

type RolledPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	File   string             `json:"file"`
	// HashIcons is the seed's verification quintuple; always length 5.
	HashIcons   []string `json:"hash_icons"`
	SpoilerPath string   `json:"spoiler_path"`
}

type RollFailedPayloadV1 struct {
	RaceID  sharedtypes.RaceID `json:"race_id"`
	Reason  string             `json:"reason"`
	Attempt int                `json:"attempt"`
}

type RollAbandonedPayloadV1 struct {
	RaceID   sharedtypes.RaceID `json:"race_id"`
	Attempts int                `json:"attempts"`
	Reason   string             `json:"reason"`
}

type AttachedPayloadV1 struct {
	RaceID    sharedtypes.RaceID `json:"race_id"`
	File      string             `json:"file"`
	HashIcons []string           `json:"hash_icons"`
}

type SpoilerUnlockedPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	URL    string             `json:"url"`
}
