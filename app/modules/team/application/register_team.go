package teamservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	teamevents "github.com/midoshouse/midos.house/app/shared/events/team"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/results"
)

// RegisterTeam creates a team for an event. Members start unconfirmed except
// the ones the request already marks confirmed (the registrant confirms
// themselves by registering).
func (s *TeamService) RegisterTeam(ctx context.Context, req *teamevents.RegisterRequestedPayloadV1) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "RegisterTeam", "", func(ctx context.Context) (results.OperationResult, error) {
		if reason := validateRegistration(req); reason != "" {
			return results.FailureResult(&teamevents.RegistrationFailedPayloadV1{
				EventID: req.EventID,
				Name:    req.Name,
				Reason:  reason,
			}), nil
		}

		members := make([]teamdb.Member, len(req.Members))
		for i, m := range req.Members {
			status := teamdb.MemberStatusCreated
			if m.Confirmed {
				status = teamdb.MemberStatusConfirmed
			}
			members[i] = teamdb.Member{
				UserID:      m.UserID,
				DisplayName: m.DisplayName,
				Status:      status,
			}
		}

		team := &teamdb.Team{
			ID:      sharedtypes.TeamID(uuid.New().String()),
			EventID: req.EventID,
			Name:    strings.TrimSpace(req.Name),
			Members: members,
			OptIns: teamdb.OptIns{
				HardSettingsOK: req.OptIns.HardSettingsOK,
				RestreamOK:     req.OptIns.RestreamOK,
			},
		}

		if err := s.repo.CreateTeam(ctx, team); err != nil {
			return results.OperationResult{}, fmt.Errorf("failed to create team: %w", err)
		}

		return results.SuccessResult(&teamevents.RegisteredPayloadV1{
			TeamID:  team.ID,
			EventID: team.EventID,
			Name:    team.Name,
		}), nil
	})
}

func validateRegistration(req *teamevents.RegisterRequestedPayloadV1) string {
	if req.EventID == "" {
		return "event id is required"
	}
	if strings.TrimSpace(req.Name) == "" {
		return "team name is required"
	}
	if len(req.Members) == 0 {
		return "a team needs at least one member"
	}
	seen := make(map[sharedtypes.UserID]bool, len(req.Members))
	for _, m := range req.Members {
		if m.UserID == "" {
			return "every member needs a user id"
		}
		if seen[m.UserID] {
			return fmt.Sprintf("duplicate member %q", m.UserID)
		}
		seen[m.UserID] = true
	}
	return ""
}
