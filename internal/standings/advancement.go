package standings

import (
	"sort"

	"github.com/lib/pq"

	"github.com/academyhq/tournament-engine/internal/models"
)

// SeedKnockoutRound fills the round-1 knockout sessions with the group-stage
// qualifiers using a generalized crossover bracket: the seeded list is built
// rank-first across groups in ascending group order, then paired by mirror so
// top seeds meet bottom seeds. Only round-1 sessions are touched. Returns the
// number of sessions updated; 0 means no seeding was applied.
func SeedKnockoutRound(groupStandings map[string][]models.GroupStandingRow, knockoutSessions []*models.Session) (int, []int64) {
	var round1 []*models.Session
	for _, s := range knockoutSessions {
		if s.Phase == models.PhaseKnockout && s.Round == 1 {
			round1 = append(round1, s)
		}
	}
	if len(round1) == 0 || len(groupStandings) == 0 {
		return 0, nil
	}
	// Deterministic pairing regardless of query order.
	sort.SliceStable(round1, func(i, j int) bool { return round1[i].ID < round1[j].ID })

	qualifierCount := 2 * len(round1)
	topN := qualifierCount / len(groupStandings)
	if topN < 1 {
		return 0, nil
	}

	groupIDs := GroupIdentifiers(groupStandings)

	// Rank-first across groups: G1.r1, G2.r1, ..., G1.r2, G2.r2, ...
	seeded := make([]int64, 0, qualifierCount)
	for pos := 0; pos < topN; pos++ {
		for _, gid := range groupIDs {
			rows := groupStandings[gid]
			if pos < len(rows) {
				seeded = append(seeded, rows[pos].UserID)
			}
		}
	}
	if len(seeded) < qualifierCount {
		return 0, nil
	}
	seeded = seeded[:qualifierCount]

	// Mirror pairing: session i gets seeds i and Q-1-i.
	for i, s := range round1 {
		s.ParticipantUserIDs = pq.Int64Array{seeded[i], seeded[qualifierCount-1-i]}
	}
	return len(round1), seeded
}
