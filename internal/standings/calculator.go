package standings

import (
	"sort"

	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/internal/ranking"
)

// CalculateGroupStandings builds one football table per group from the
// GROUP_STAGE sessions. Participants seeded on a session appear even with no
// matches played. names is optional display data from the user directory.
func CalculateGroupStandings(sessions []models.Session, names map[int64]string) map[string][]models.GroupStandingRow {
	byGroup := make(map[string][]models.Session)
	for _, s := range sessions {
		if s.Phase != models.PhaseGroupStage {
			continue
		}
		gid := ""
		if s.GroupIdentifier != nil {
			gid = *s.GroupIdentifier
		}
		byGroup[gid] = append(byGroup[gid], s)
	}

	out := make(map[string][]models.GroupStandingRow, len(byGroup))
	for gid, group := range byGroup {
		rows := ranking.LeagueRanking(group)
		for i := range rows {
			rows[i].Name = names[rows[i].UserID]
		}
		out[gid] = rows
	}
	return out
}

// GroupIdentifiers returns the group keys in ascending order.
func GroupIdentifiers(standings map[string][]models.GroupStandingRow) []string {
	ids := make([]string, 0, len(standings))
	for gid := range standings {
		ids = append(ids, gid)
	}
	sort.Strings(ids)
	return ids
}

// IncompleteSessions lists the group-stage sessions still missing results.
func IncompleteSessions(sessions []models.Session) []models.Session {
	var incomplete []models.Session
	for _, s := range sessions {
		if s.Phase == models.PhaseGroupStage && s.GameResults == nil {
			incomplete = append(incomplete, s)
		}
	}
	return incomplete
}
