// Package seedgenevents defines the effect topic consumed by the seed
// generator adapter.
package seedgenevents

import (
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

const (
	JobSubmitV1 = "seedgen.job.submit.v1"
)

type JobSubmitPayloadV1 struct {
	RaceID   sharedtypes.RaceID  `json:"race_id"`
	EventID  sharedtypes.EventID `json:"event_id"`
	Settings map[string]string   `json:"settings"`
	Attempt  int                 `json:"attempt"`
}
