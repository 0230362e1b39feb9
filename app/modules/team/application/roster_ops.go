package teamservice

import (
	"context"
	"errors"
	"fmt"

	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	teamevents "github.com/midoshouse/midos.house/app/shared/events/team"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// ConfirmMember marks a roster slot confirmed. Confirming an already-confirmed
// member is a no-op success so redeliveries stay harmless.
func (s *TeamService) ConfirmMember(ctx context.Context, teamID sharedtypes.TeamID, userID sharedtypes.UserID) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "ConfirmMember", teamID, func(ctx context.Context) (results.OperationResult, error) {
		team, err := s.repo.GetTeam(ctx, teamID)
		if errors.Is(err, teamdb.ErrTeamNotFound) {
			return results.FailureResult(&teamevents.MemberConfirmFailedPayloadV1{
				TeamID: teamID,
				UserID: userID,
				Reason: "team not found",
			}), nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to fetch team: %w", err)
		}

		if team.Resigned {
			return results.FailureResult(&teamevents.MemberConfirmFailedPayloadV1{
				TeamID: teamID,
				UserID: userID,
				Reason: "team has resigned",
			}), nil
		}

		member := team.Member(userID)
		if member == nil {
			return results.FailureResult(&teamevents.MemberConfirmFailedPayloadV1{
				TeamID: teamID,
				UserID: userID,
				Reason: "user is not on this team",
			}), nil
		}

		if member.Status != teamdb.MemberStatusConfirmed {
			member.Status = teamdb.MemberStatusConfirmed
			if err := s.repo.UpdateTeam(ctx, team); err != nil {
				return results.OperationResult{}, fmt.Errorf("failed to update team: %w", err)
			}
		}

		return results.SuccessResult(&teamevents.MemberConfirmedPayloadV1{
			TeamID:       teamID,
			UserID:       userID,
			AllConfirmed: team.Confirmed(),
		}), nil
	})
}

// UpdateOptIns replaces the team's consent flags.
func (s *TeamService) UpdateOptIns(ctx context.Context, teamID sharedtypes.TeamID, optIns teamevents.OptInsV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "UpdateOptIns", teamID, func(ctx context.Context) (results.OperationResult, error) {
		team, err := s.repo.GetTeam(ctx, teamID)
		if errors.Is(err, teamdb.ErrTeamNotFound) {
			return results.FailureResult(&teamevents.OptInUpdateFailedPayloadV1{
				TeamID: teamID,
				Reason: "team not found",
			}), nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to fetch team: %w", err)
		}

		team.OptIns = teamdb.OptIns{
			HardSettingsOK: optIns.HardSettingsOK,
			RestreamOK:     optIns.RestreamOK,
		}
		if err := s.repo.UpdateTeam(ctx, team); err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to update team: %w", err)
		}

		return results.SuccessResult(&teamevents.OptInUpdatedPayloadV1{
			TeamID: teamID,
			OptIns: optIns,
		}), nil
	})
}

// Resign marks the team resigned. The race module reacts to the resignation
// event by withdrawing the team's active races. Resigning twice is a no-op
// success.
func (s *TeamService) Resign(ctx context.Context, teamID sharedtypes.TeamID, requestedBy sharedtypes.UserID) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "Resign", teamID, func(ctx context.Context) (results.OperationResult, error) {
		team, err := s.repo.GetTeam(ctx, teamID)
		if errors.Is(err, teamdb.ErrTeamNotFound) {
			return results.FailureResult(&teamevents.ResignFailedPayloadV1{
				TeamID: teamID,
				Reason: "team not found",
			}), nil
		}
		if err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to fetch team: %w", err)
		}

		if requestedBy != "" && requestedBy != sharedtypes.SystemActor && team.Member(requestedBy) == nil {
			return results.FailureResult(&teamevents.ResignFailedPayloadV1{
				TeamID: teamID,
				Reason: "only a team member can resign the team",
			}), nil
		}

		if !team.Resigned {
			team.Resigned = true
			if err := s.repo.UpdateTeam(ctx, team); err != nil {
				return results.OperationResult{}, fmt.Errorf("failed to update team: %w", err)
			}
		}

		return results.SuccessResult(&teamevents.ResignedPayloadV1{
			TeamID:  teamID,
			EventID: team.EventID,
		}), nil
	})
}
