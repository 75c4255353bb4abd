package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academyhq/tournament-engine/internal/models"
)

func leagueTournament(players int) *models.Tournament {
	return &models.Tournament{
		ID:        1,
		Name:      "Test League",
		Format:    models.FormatHeadToHead,
		TypeCode:  models.TypeLeague,
		StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
	}
}

func rosterOf(n int) []int64 {
	roster := make([]int64, n)
	for i := range roster {
		roster[i] = int64(i + 1)
	}
	return roster
}

func TestGenerateLeagueEvenRoster(t *testing.T) {
	tournament := leagueTournament(4)
	sessions, err := Generate(tournament, rosterOf(4), nil, Options{})
	require.NoError(t, err)

	// Full round robin: N*(N-1)/2 matches over N-1 rounds.
	assert.Len(t, sessions, 6)

	pairs := make(map[[2]int64]int)
	for _, s := range sessions {
		require.Len(t, s.ParticipantUserIDs, 2)
		a, b := s.ParticipantUserIDs[0], s.ParticipantUserIDs[1]
		if a > b {
			a, b = b, a
		}
		pairs[[2]int64{a, b}]++
		assert.Equal(t, models.PhaseGroupStage, s.Phase)
		assert.Equal(t, models.MatchHeadToHead, s.MatchFormat)
	}
	// Every pair meets exactly once.
	assert.Len(t, pairs, 6)
	for pair, count := range pairs {
		assert.Equal(t, 1, count, "pair %v", pair)
	}
}

func TestGenerateLeagueOddRosterUsesByes(t *testing.T) {
	tournament := leagueTournament(5)
	sessions, err := Generate(tournament, rosterOf(5), nil, Options{})
	require.NoError(t, err)

	// 5 players: 10 matches over 5 rounds, one bye per round.
	assert.Len(t, sessions, 10)
	rounds := make(map[int]int)
	for _, s := range sessions {
		rounds[s.Round]++
		for _, id := range s.ParticipantUserIDs {
			assert.NotZero(t, id)
		}
	}
	assert.Len(t, rounds, 5)
	for _, count := range rounds {
		assert.Equal(t, 2, count)
	}
}

func TestGenerateLeagueDeterministic(t *testing.T) {
	tournament := leagueTournament(6)
	first, err := Generate(tournament, rosterOf(6), nil, Options{})
	require.NoError(t, err)
	second, err := Generate(tournament, rosterOf(6), nil, Options{})
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ParticipantUserIDs, second[i].ParticipantUserIDs)
		assert.Equal(t, first[i].DateStart, second[i].DateStart)
	}
}

func TestGenerateKnockoutPowerOfTwo(t *testing.T) {
	tournament := leagueTournament(8)
	tournament.TypeCode = models.TypeKnockout
	sessions, err := Generate(tournament, rosterOf(8), nil, Options{})
	require.NoError(t, err)

	// 4 quarterfinals + 2 semifinals + final.
	assert.Len(t, sessions, 7)

	byRound := make(map[int][]models.Session)
	for _, s := range sessions {
		byRound[s.Round] = append(byRound[s.Round], s)
	}
	assert.Len(t, byRound[1], 4)
	assert.Len(t, byRound[2], 2)
	assert.Len(t, byRound[3], 1)
	assert.Contains(t, byRound[3][0].Title, "Final")

	// Seeds 1 and 2 land in opposite halves: round 1 never pairs them.
	for _, s := range byRound[1] {
		ids := s.ParticipantUserIDs
		require.Len(t, ids, 2)
		assert.False(t, (ids[0] == 1 && ids[1] == 2) || (ids[0] == 2 && ids[1] == 1))
	}
}

func TestGenerateKnockoutByesForTopSeeds(t *testing.T) {
	tournament := leagueTournament(6)
	tournament.TypeCode = models.TypeKnockout
	sessions, err := Generate(tournament, rosterOf(6), nil, Options{})
	require.NoError(t, err)

	var round1 []models.Session
	playing := make(map[int64]bool)
	for _, s := range sessions {
		if s.Round == 1 {
			round1 = append(round1, s)
			for _, id := range s.ParticipantUserIDs {
				playing[id] = true
			}
		}
	}
	// Bracket of 8 with 6 players: two byes, so only two round-1 matches.
	assert.Len(t, round1, 2)
	assert.False(t, playing[1], "top seed gets a bye")
	assert.False(t, playing[2], "second seed gets a bye")
}

func TestGenerateIndividualRanking(t *testing.T) {
	tournament := leagueTournament(10)
	tournament.Format = models.FormatIndividualRanking
	tournament.ScoringType = models.ScoringTimeBased
	sessions, err := Generate(tournament, rosterOf(10), nil, Options{TotalRounds: 4})
	require.NoError(t, err)

	require.Len(t, sessions, 1)
	s := sessions[0]
	assert.Equal(t, models.PhaseIndividualRanking, s.Phase)
	assert.Equal(t, models.MatchIndividualRanking, s.MatchFormat)
	assert.Len(t, s.ParticipantUserIDs, 10)
	require.NotNil(t, s.RoundsData)
	assert.Equal(t, 4, s.RoundsData.TotalRounds)
	assert.Equal(t, 0, s.RoundsData.CompletedRounds)
}

func TestGenerateIndividualRankingRoundsFromConfig(t *testing.T) {
	tournament := leagueTournament(3)
	tournament.Format = models.FormatIndividualRanking
	tournament.ScoringType = models.ScoringScoreBased
	tournament.Config = &models.TournamentConfig{TotalRounds: 5}
	sessions, err := Generate(tournament, rosterOf(3), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, sessions[0].RoundsData.TotalRounds)
}

func TestGenerateGroupKnockout(t *testing.T) {
	tournament := leagueTournament(8)
	tournament.TypeCode = models.TypeGroupKnockout
	sessions, err := Generate(tournament, rosterOf(8), nil, Options{GroupCount: 2, TopNPerGroup: 2})
	require.NoError(t, err)

	var groupSessions, knockoutSessions []models.Session
	groups := make(map[string]bool)
	for _, s := range sessions {
		switch s.Phase {
		case models.PhaseGroupStage:
			groupSessions = append(groupSessions, s)
			require.NotNil(t, s.GroupIdentifier)
			groups[*s.GroupIdentifier] = true
		case models.PhaseKnockout:
			knockoutSessions = append(knockoutSessions, s)
			assert.Empty(t, s.ParticipantUserIDs, "knockout shells are unseeded")
		}
	}

	// Two groups of four: 6 matches each; bracket of 4: semifinals + final.
	assert.Len(t, groupSessions, 12)
	assert.Len(t, knockoutSessions, 3)
	assert.True(t, groups["Group A"])
	assert.True(t, groups["Group B"])
}

func TestGenerateGroupKnockoutShrinksGroupCount(t *testing.T) {
	tournament := leagueTournament(4)
	tournament.TypeCode = models.TypeGroupKnockout
	// 4 players cannot fill 4 groups of 2+; the generator clamps the count.
	sessions, err := Generate(tournament, rosterOf(4), nil, Options{GroupCount: 4})
	require.NoError(t, err)

	groups := make(map[string]bool)
	for _, s := range sessions {
		if s.Phase == models.PhaseGroupStage && s.GroupIdentifier != nil {
			groups[*s.GroupIdentifier] = true
		}
	}
	assert.Len(t, groups, 2)
}

func TestGenerateGroupKnockoutRejectsTinyRoster(t *testing.T) {
	tournament := leagueTournament(3)
	tournament.TypeCode = models.TypeGroupKnockout
	_, err := Generate(tournament, rosterOf(3), nil, Options{})
	require.Error(t, err)
}

func TestGenerateUnknownTypeCode(t *testing.T) {
	tournament := leagueTournament(4)
	tournament.TypeCode = "double_elimination"
	_, err := Generate(tournament, rosterOf(4), nil, Options{})
	require.Error(t, err)
}

func TestSlotClockParallelFields(t *testing.T) {
	params := ScheduleParams{
		MatchDuration:  30 * time.Minute,
		BreakDuration:  10 * time.Minute,
		ParallelFields: 2,
	}
	clock := newSlotClock(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "09:00", params)

	s1, e1, f1 := clock.next()
	s2, _, f2 := clock.next()
	s3, _, f3 := clock.next()

	// First wave shares the start slot across both pitches.
	assert.Equal(t, "2026-09-01T09:00:00", s1)
	assert.Equal(t, "2026-09-01T09:00:00", s2)
	assert.Equal(t, "2026-09-01T09:30:00", e1)
	assert.Equal(t, 1, f1)
	assert.Equal(t, 2, f2)

	// Second wave starts after match plus break.
	assert.Equal(t, "2026-09-01T09:40:00", s3)
	assert.Equal(t, 1, f3)
}

func TestResolveParamsPrecedence(t *testing.T) {
	campusID := uint(7)
	tournament := &models.Tournament{
		MatchDurationMinutes: 45,
		BreakDurationMinutes: 15,
		ParallelFields:       2,
	}
	configs := []models.CampusScheduleConfig{
		{CampusID: 7, MatchDurationMinutes: 20, ParallelFields: 3, IsActive: true, VenueLabel: "Main Hall"},
		{CampusID: 9, MatchDurationMinutes: 60, IsActive: true},
	}

	params := ResolveParams(tournament, configs, Options{CampusID: &campusID})

	// Campus row wins where set, tournament fills the rest.
	assert.Equal(t, 20*time.Minute, params.MatchDuration)
	assert.Equal(t, 15*time.Minute, params.BreakDuration)
	assert.Equal(t, 3, params.ParallelFields)
	assert.Equal(t, "Main Hall", params.VenueLabel)
}

func TestNextPowerOfTwo(t *testing.T) {
	assert.Equal(t, 1, nextPowerOfTwo(1))
	assert.Equal(t, 2, nextPowerOfTwo(2))
	assert.Equal(t, 4, nextPowerOfTwo(3))
	assert.Equal(t, 8, nextPowerOfTwo(6))
	assert.Equal(t, 8, nextPowerOfTwo(8))
	assert.Equal(t, 16, nextPowerOfTwo(9))
}

func TestBracketOrderSeparatesTopSeeds(t *testing.T) {
	order := bracketOrder(8)
	assert.Equal(t, []int{1, 8, 4, 5, 2, 7, 3, 6}, order)
}
