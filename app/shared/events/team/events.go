// Package teamevents defines the topics and payloads of the team registry.
package teamevents

import (
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

const (
	TeamRegisterRequestedV1      = "team.register.requested.v1"
	TeamRegisteredV1             = "team.registered.v1"
	TeamRegistrationFailedV1     = "team.registration.failed.v1"
	TeamMemberConfirmRequestedV1 = "team.member.confirm.requested.v1"
	TeamMemberConfirmedV1        = "team.member.confirmed.v1"
	TeamMemberConfirmFailedV1    = "team.member.confirm.failed.v1"
	TeamOptInUpdateRequestedV1   = "team.optin.update.requested.v1"
	TeamOptInUpdatedV1           = "team.optin.updated.v1"
	TeamOptInUpdateFailedV1      = "team.optin.update.failed.v1"
	TeamResignRequestedV1        = "team.resign.requested.v1"
	TeamResignedV1               = "team.resigned.v1"
	TeamResignFailedV1           = "team.resign.failed.v1"
)

type MemberV1 struct {
	UserID      sharedtypes.UserID `json:"user_id"`
	DisplayName string             `json:"display_name"`
	Confirmed   bool               `json:"confirmed"`
}

type OptInsV1 struct {
	HardSettingsOK bool `json:"hard_settings_ok"`
	RestreamOK     bool `json:"restream_ok"`
}

type RegisterRequestedPayloadV1 struct {
	EventID sharedtypes.EventID `json:"event_id"`
	Name    string              `json:"name"`
	Members []MemberV1          `json:"members"`
	OptIns  OptInsV1            `json:"opt_ins"`
}

type RegisteredPayloadV1 struct {
	TeamID  sharedtypes.TeamID  `json:"team_id"`
	EventID sharedtypes.EventID `json:"event_id"`
	Name    string              `json:"name"`
}

type RegistrationFailedPayloadV1 struct {
	EventID sharedtypes.EventID `json:"event_id"`
	Name    string              `json:"name"`
	Reason  string              `json:"reason"`
}

type MemberConfirmRequestedPayloadV1 struct {
	TeamID sharedtypes.TeamID `json:"team_id"`
	UserID sharedtypes.UserID `json:"user_id"`
}

type MemberConfirmedPayloadV1 struct {
	TeamID       sharedtypes.TeamID `json:"team_id"`
	UserID       sharedtypes.UserID `json:"user_id"`
	AllConfirmed bool               `json:"all_confirmed"`
}

type MemberConfirmFailedPayloadV1 struct {
	TeamID sharedtypes.TeamID `json:"team_id"`
	UserID sharedtypes.UserID `json:"user_id"`
	Reason string             `json:"reason"`
}

type OptInUpdateRequestedPayloadV1 struct {
	TeamID sharedtypes.TeamID `json:"team_id"`
	OptIns OptInsV1           `json:"opt_ins"`
}

type OptInUpdatedPayloadV1 struct {
	TeamID sharedtypes.TeamID `json:"team_id"`
	OptIns OptInsV1           `json:"opt_ins"`
}

type OptInUpdateFailedPayloadV1 struct {
	TeamID sharedtypes.TeamID `json:"team_id"`
	Reason string             `json:"reason"`
}

type ResignRequestedPayloadV1 struct {
	TeamID      sharedtypes.TeamID `json:"team_id"`
	RequestedBy sharedtypes.UserID `json:"requested_by"`
}

type ResignedPayloadV1 struct {
	TeamID  sharedtypes.TeamID  `json:"team_id"`
	EventID sharedtypes.EventID `json:"event_id"`
}

type ResignFailedPayloadV1 struct {
	TeamID sharedtypes.TeamID `json:"team_id"`
	Reason string             `json:"reason"`
}
