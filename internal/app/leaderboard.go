package app

import (
	"context"
	"sort"
	"strings"

	"drill-review-service/internal/domain"
)

// DefaultPointsPerApproval is the score awarded for each approved answer.
const DefaultPointsPerApproval = 10

// LeaderboardService projects the answer store into per-session standings.
// It keeps no state; every call recomputes from the stores.
type LeaderboardService struct {
	answers AnswerStore
	leaders LeaderDirectory
	points  int
}

// NewLeaderboardService builds the projection. points <= 0 falls back to
// DefaultPointsPerApproval.
func NewLeaderboardService(answers AnswerStore, leaders LeaderDirectory, points int) *LeaderboardService {
	if points <= 0 {
		points = DefaultPointsPerApproval
	}
	return &LeaderboardService{answers: answers, leaders: leaders, points: points}
}

// Compute returns the ranked leaderboard of one drill session.
func (s *LeaderboardService) Compute(ctx context.Context, sessionID string) (domain.Leaderboard, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Leaderboard{}, domain.ValidationErrors{{Field: "sessionId", Message: "is required", Rule: "required"}}
	}
	roster, err := s.leaders.Roster(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	answers, err := s.answers.List(ctx, domain.AnswerFilter{SessionID: sessionID})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return BuildLeaderboard(sessionID, roster, answers, s.points), nil
}

// BuildLeaderboard counts answers per registered leader, scores approvals and
// ranks by score descending, breaking ties by leader ID ascending. Answers of
// leaders missing from the roster, or from other sessions, are ignored.
func BuildLeaderboard(sessionID string, roster []domain.Leader, answers []domain.Answer, pointsPerApproval int) domain.Leaderboard {
	index := make(map[string]int, len(roster))
	entries := make([]domain.LeaderboardEntry, 0, len(roster))
	for _, leader := range roster {
		if _, dup := index[leader.ID]; dup {
			continue
		}
		index[leader.ID] = len(entries)
		entries = append(entries, domain.LeaderboardEntry{
			LeaderID: leader.ID,
			Name:     leader.Name,
			Team:     leader.Team,
		})
	}

	for _, a := range answers {
		if a.SessionID != sessionID {
			continue
		}
		i, ok := index[a.LeaderID]
		if !ok {
			continue
		}
		entries[i].Answered++
		if a.Status == domain.StatusApproved {
			entries[i].Approved++
		}
	}

	for i := range entries {
		entries[i].Score = entries[i].Approved * pointsPerApproval
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].LeaderID < entries[j].LeaderID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return domain.Leaderboard{
		SessionID:         sessionID,
		PointsPerApproval: pointsPerApproval,
		Entries:           entries,
	}
}
