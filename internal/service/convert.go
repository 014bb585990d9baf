package service

import (
	"github.com/samber/lo"
	"github.com/yakoovad/tabletop-hub/internal/model"
	"github.com/yakoovad/tabletop-hub/internal/repository"
)

func toModelGame(kind model.GameKind, g *repository.Game) *model.Game {
	return &model.Game{
		ID:               g.ID,
		Kind:             kind,
		Name:             g.Name,
		Description:      g.Description,
		OwnerID:          g.OwnerID,
		Master:           g.OwnerUsername,
		ParticipantCount: g.ParticipantCount,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
}

func toModelGames(kind model.GameKind, games []*repository.Game) []*model.Game {
	return lo.Map(games, func(g *repository.Game, _ int) *model.Game {
		return toModelGame(kind, g)
	})
}

func toModelPlayers(players []*repository.Player) []*model.Player {
	return lo.Map(players, func(p *repository.Player, _ int) *model.Player {
		return &model.Player{
			UserID:   p.UserID,
			Username: p.Username,
			JoinedAt: p.JoinedAt,
		}
	})
}

func toModelJoinRequest(kind model.GameKind, r *repository.JoinRequest) *model.JoinRequest {
	status := model.JoinRequestStatusPending
	if r.Accepted {
		status = model.JoinRequestStatusAccepted
	}
	return &model.JoinRequest{
		ID:          r.ID,
		Kind:        kind,
		RequesterID: r.RequesterID,
		TargetID:    r.TargetID,
		Accepted:    r.Accepted,
		Status:      status,
		CreatedAt:   r.CreatedAt,
		AcceptedAt:  r.AcceptedAt,
	}
}

func toModelJoinRequests(kind model.GameKind, reqs []*repository.JoinRequest) []*model.JoinRequest {
	return lo.Map(reqs, func(r *repository.JoinRequest, _ int) *model.JoinRequest {
		return toModelJoinRequest(kind, r)
	})
}
