package ranking

import (
	"sort"

	"github.com/academyhq/tournament-engine/internal/models"
)

// RankedParticipant is a participant with a final tournament-wide rank.
type RankedParticipant struct {
	UserID int64  `json:"user_id"`
	Rank   int    `json:"rank"`
	Source string `json:"source"` // knockout or group_stage
}

// GroupKnockoutRanking combines the two phases of a hybrid tournament:
// knockout participants come first with their bracket ranks, then
// group-stage-only participants in (group rank, group identifier) order with
// sequential ranks after the knockout block.
func GroupKnockoutRanking(sessions []models.Session) []RankedParticipant {
	var groupSessions, knockoutSessions []models.Session
	for _, s := range sessions {
		switch s.Phase {
		case models.PhaseGroupStage:
			groupSessions = append(groupSessions, s)
		case models.PhaseKnockout:
			knockoutSessions = append(knockoutSessions, s)
		}
	}

	knockout := KnockoutRanking(knockoutSessions)
	out := make([]RankedParticipant, 0, len(knockout))
	inKnockout := make(map[int64]bool, len(knockout))
	maxKnockoutRank := 0
	for _, k := range knockout {
		out = append(out, RankedParticipant{UserID: k.UserID, Rank: k.Rank, Source: "knockout"})
		inKnockout[k.UserID] = true
		if k.Rank > maxKnockoutRank {
			maxKnockoutRank = k.Rank
		}
	}

	// League standings per group for everyone who did not reach the bracket.
	type groupRow struct {
		userID  int64
		rank    int
		groupID string
	}
	var rest []groupRow
	byGroup := make(map[string][]models.Session)
	groupIDs := make([]string, 0)
	for _, s := range groupSessions {
		gid := ""
		if s.GroupIdentifier != nil {
			gid = *s.GroupIdentifier
		}
		if _, ok := byGroup[gid]; !ok {
			groupIDs = append(groupIDs, gid)
		}
		byGroup[gid] = append(byGroup[gid], s)
	}
	sort.Strings(groupIDs)

	for _, gid := range groupIDs {
		for _, row := range LeagueRanking(byGroup[gid]) {
			if inKnockout[row.UserID] {
				continue
			}
			rest = append(rest, groupRow{userID: row.UserID, rank: row.Rank, groupID: gid})
		}
	}

	sort.SliceStable(rest, func(i, j int) bool {
		if rest[i].rank != rest[j].rank {
			return rest[i].rank < rest[j].rank
		}
		return rest[i].groupID < rest[j].groupID
	})

	next := maxKnockoutRank + 1
	for _, r := range rest {
		out = append(out, RankedParticipant{UserID: r.userID, Rank: next, Source: "group_stage"})
		next++
	}
	return out
}
