package scheduler

import (
	"fmt"
	"math/bits"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

// Options carries request-level shape overrides for a generation run. Timing
// is never taken from the request, only from the resolution chain.
type Options struct {
	TotalRounds  int    // INDIVIDUAL_RANKING round count
	GroupCount   int    // group_knockout group count
	TopNPerGroup int    // qualifiers per group
	CampusID     *uint  // campus the sessions are assigned to
	DayStart     string // wall clock "15:04" for the first match of a day
}

// ScheduleParams is the resolved timing configuration. Resolution order,
// highest first: campus row, tournament global, type default.
type ScheduleParams struct {
	MatchDuration  time.Duration
	BreakDuration  time.Duration
	ParallelFields int
	VenueLabel     string
}

const (
	defaultMatchMinutes = 30
	defaultBreakMinutes = 10
	defaultDayStart     = "09:00"
	defaultGroupCount   = 2
	defaultTopN         = 2
	defaultTotalRounds  = 3
)

// ResolveParams applies the override chain for the campus the sessions run at.
func ResolveParams(t *models.Tournament, campusConfigs []models.CampusScheduleConfig, opts Options) ScheduleParams {
	match, brk, fields := 0, -1, 0
	venue := ""

	if t.MatchDurationMinutes > 0 {
		match = t.MatchDurationMinutes
	}
	if t.BreakDurationMinutes >= 0 {
		brk = t.BreakDurationMinutes
	}
	if t.ParallelFields > 0 {
		fields = t.ParallelFields
	}
	if opts.CampusID != nil {
		for _, cfg := range campusConfigs {
			if cfg.CampusID == *opts.CampusID && cfg.IsActive {
				if cfg.MatchDurationMinutes > 0 {
					match = cfg.MatchDurationMinutes
				}
				if cfg.BreakDurationMinutes > 0 {
					brk = cfg.BreakDurationMinutes
				}
				if cfg.ParallelFields > 0 {
					fields = cfg.ParallelFields
				}
				venue = cfg.VenueLabel
				break
			}
		}
	}
	if match == 0 {
		match = defaultMatchMinutes
	}
	if brk < 0 {
		brk = defaultBreakMinutes
	}
	if fields == 0 {
		fields = 1
	}
	return ScheduleParams{
		MatchDuration:  time.Duration(match) * time.Minute,
		BreakDuration:  time.Duration(brk) * time.Minute,
		ParallelFields: fields,
		VenueLabel:     venue,
	}
}

// slotClock hands out naive wall-clock slots: matches of a wave run in
// parallel across fields, waves on the same pitch are separated by the break.
type slotClock struct {
	cursor time.Time
	params ScheduleParams
	inWave int
}

func newSlotClock(startDate time.Time, dayStart string, params ScheduleParams) *slotClock {
	clock, err := time.Parse("15:04", dayStart)
	if err != nil {
		clock, _ = time.Parse("15:04", defaultDayStart)
	}
	cursor := time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		clock.Hour(), clock.Minute(), 0, 0, time.UTC)
	return &slotClock{cursor: cursor, params: params}
}

// next returns start/end wall-clock strings and the pitch index for one match.
func (sc *slotClock) next() (string, string, int) {
	field := sc.inWave
	start := sc.cursor
	end := start.Add(sc.params.MatchDuration)
	sc.inWave++
	if sc.inWave >= sc.params.ParallelFields {
		sc.inWave = 0
		sc.cursor = end.Add(sc.params.BreakDuration)
	}
	return start.Format(models.SessionWallClock), end.Format(models.SessionWallClock), field + 1
}

// advanceWave closes a partially filled wave, so the next round starts later.
func (sc *slotClock) advanceWave() {
	if sc.inWave > 0 {
		sc.inWave = 0
		sc.cursor = sc.cursor.Add(sc.params.MatchDuration + sc.params.BreakDuration)
	}
}

// Generate produces the full session set for a tournament from its type and
// roster. The roster order is the initial seeding.
func Generate(t *models.Tournament, roster []int64, campusConfigs []models.CampusScheduleConfig, opts Options) ([]models.Session, error) {
	if opts.DayStart == "" {
		opts.DayStart = defaultDayStart
	}
	params := ResolveParams(t, campusConfigs, opts)

	switch t.Format {
	case models.FormatIndividualRanking:
		return generateIndividualRanking(t, roster, params, opts)
	case models.FormatHeadToHead:
		switch t.TypeCode {
		case models.TypeLeague:
			return generateLeague(t, roster, params, opts, models.PhaseGroupStage, nil, 0)
		case models.TypeKnockout:
			return generateKnockout(t, roster, params, opts)
		case models.TypeGroupKnockout:
			return generateGroupKnockout(t, roster, params, opts)
		default:
			return nil, utils.NewAppError(utils.ErrCodeUnknownScoringType,
				"Unknown tournament type code", t.TypeCode)
		}
	default:
		return nil, utils.NewAppError(utils.ErrCodeValidation,
			"Unknown tournament format", t.Format)
	}
}

func generateIndividualRanking(t *models.Tournament, roster []int64, params ScheduleParams, opts Options) ([]models.Session, error) {
	if len(roster) == 0 {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Roster is empty", "")
	}
	totalRounds := opts.TotalRounds
	if totalRounds == 0 && t.Config != nil {
		totalRounds = t.Config.TotalRounds
	}
	if totalRounds == 0 {
		totalRounds = defaultTotalRounds
	}

	clock := newSlotClock(t.StartDate, opts.DayStart, params)
	start, end, _ := clock.next()

	return []models.Session{{
		TournamentID:       t.ID,
		Title:              fmt.Sprintf("%s - Ranking Session", t.Name),
		DateStart:          start,
		DateEnd:            end,
		CampusID:           opts.CampusID,
		VenueLabel:         params.VenueLabel,
		IsTournamentGame:   true,
		Phase:              models.PhaseIndividualRanking,
		Round:              1,
		MatchFormat:        models.MatchIndividualRanking,
		ScoringType:        t.ScoringType,
		ParticipantUserIDs: pq.Int64Array(roster),
		RoundsData: &models.RoundsData{
			TotalRounds:  totalRounds,
			RoundResults: map[string]map[string]string{},
		},
	}}, nil
}

// generateLeague schedules a round robin with the circle method: index 0 stays
// fixed, the rest rotate each round. Odd rosters get a dummy slot whose
// pairings are skipped (byes).
func generateLeague(t *models.Tournament, roster []int64, params ScheduleParams, opts Options, phase string, groupID *string, roundOffset int) ([]models.Session, error) {
	if len(roster) < 2 {
		return nil, utils.NewAppError(utils.ErrCodeValidation,
			"At least 2 participants are required", fmt.Sprintf("got %d", len(roster)))
	}

	players := append([]int64(nil), roster...)
	hasDummy := false
	if len(players)%2 != 0 {
		players = append(players, 0)
		hasDummy = true
	}
	n := len(players)
	rounds := n - 1
	perRound := n / 2

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	clock := newSlotClock(t.StartDate, opts.DayStart, params)
	var sessions []models.Session
	for round := 1; round <= rounds; round++ {
		for i := 0; i < perRound; i++ {
			home := indices[i]
			away := indices[n-1-i]
			if hasDummy && (players[home] == 0 || players[away] == 0) {
				continue
			}
			start, end, field := clock.next()
			title := fmt.Sprintf("%s - Round %d", t.Name, round)
			if groupID != nil {
				title = fmt.Sprintf("%s - %s Round %d", t.Name, *groupID, round)
			}
			sessions = append(sessions, models.Session{
				TournamentID:       t.ID,
				Title:              title,
				DateStart:          start,
				DateEnd:            end,
				CampusID:           opts.CampusID,
				VenueLabel:         params.VenueLabel,
				FieldIndex:         field,
				IsTournamentGame:   true,
				Phase:              phase,
				Round:              round + roundOffset,
				GroupIdentifier:    groupID,
				MatchFormat:        models.MatchHeadToHead,
				ScoringType:        t.ScoringType,
				ParticipantUserIDs: pq.Int64Array{players[home], players[away]},
			})
		}
		clock.advanceWave()
		rotate(indices)
	}
	return sessions, nil
}

// rotate keeps the first element fixed and shifts the rest clockwise.
func rotate(indices []int) {
	n := len(indices)
	if n <= 2 {
		return
	}
	last := indices[n-1]
	for i := n - 1; i > 1; i-- {
		indices[i] = indices[i-1]
	}
	indices[1] = last
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// bracketOrder places seeds into slots so seed 1 meets seed 2 only in the
// final: the standard recursive mirror expansion.
func bracketOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		next := make([]int, 0, len(order)*2)
		mirror := len(order)*2 + 1
		for _, s := range order {
			next = append(next, s, mirror-s)
		}
		order = next
	}
	return order
}

// generateKnockout builds a single-elimination bracket sized to the next power
// of two. Top seeds receive the byes: pairs with an empty slot get no round-1
// session. Deeper rounds are emitted as empty shells. Round 1 is the round
// furthest from the final.
func generateKnockout(t *models.Tournament, roster []int64, params ScheduleParams, opts Options) ([]models.Session, error) {
	if len(roster) < 2 {
		return nil, utils.NewAppError(utils.ErrCodeValidation,
			"At least 2 participants are required", fmt.Sprintf("got %d", len(roster)))
	}

	size := nextPowerOfTwo(len(roster))
	depth := bits.Len(uint(size)) - 1

	// Seed slots: slot holds the roster index by seeding order, 0 = bye.
	slots := make([]int64, size)
	for slot, seed := range bracketOrder(size) {
		if seed <= len(roster) {
			slots[slot] = roster[seed-1]
		}
	}

	clock := newSlotClock(t.StartDate, opts.DayStart, params)
	var sessions []models.Session
	matchNo := 1
	for i := 0; i < size; i += 2 {
		a, b := slots[i], slots[i+1]
		if a == 0 || b == 0 {
			continue // bye, the seeded player advances without a session
		}
		start, end, field := clock.next()
		sessions = append(sessions, models.Session{
			TournamentID:       t.ID,
			Title:              fmt.Sprintf("%s - Round 1 Match %d", t.Name, matchNo),
			DateStart:          start,
			DateEnd:            end,
			CampusID:           opts.CampusID,
			VenueLabel:         params.VenueLabel,
			FieldIndex:         field,
			IsTournamentGame:   true,
			Phase:              models.PhaseKnockout,
			Round:              1,
			MatchFormat:        models.MatchHeadToHead,
			ScoringType:        t.ScoringType,
			ParticipantUserIDs: pq.Int64Array{a, b},
		})
		matchNo++
	}
	clock.advanceWave()

	sessions = append(sessions, knockoutShell(t, params, opts, clock, 2, depth, size)...)
	return sessions, nil
}

// knockoutShell emits empty sessions for rounds fromRound..depth of a bracket
// with the given slot count.
func knockoutShell(t *models.Tournament, params ScheduleParams, opts Options, clock *slotClock, fromRound, depth, size int) []models.Session {
	var sessions []models.Session
	for round := fromRound; round <= depth; round++ {
		matches := size / (1 << uint(round))
		if matches < 1 {
			matches = 1
		}
		for m := 1; m <= matches; m++ {
			start, end, field := clock.next()
			title := fmt.Sprintf("%s - Round %d Match %d", t.Name, round, m)
			if round == depth {
				title = fmt.Sprintf("%s - Final", t.Name)
			}
			sessions = append(sessions, models.Session{
				TournamentID:     t.ID,
				Title:            title,
				DateStart:        start,
				DateEnd:          end,
				CampusID:         opts.CampusID,
				VenueLabel:       params.VenueLabel,
				FieldIndex:       field,
				IsTournamentGame: true,
				Phase:            models.PhaseKnockout,
				Round:            round,
				MatchFormat:      models.MatchHeadToHead,
				ScoringType:      t.ScoringType,
			})
		}
		clock.advanceWave()
	}
	return sessions
}

// generateGroupKnockout partitions the roster into groups, schedules each as a
// mini round robin and appends an unseeded knockout shell sized for the
// qualifiers. Advancement fills round 1 when the group stage closes.
func generateGroupKnockout(t *models.Tournament, roster []int64, params ScheduleParams, opts Options) ([]models.Session, error) {
	groupCount := opts.GroupCount
	if groupCount == 0 && t.Config != nil {
		groupCount = t.Config.GroupCount
	}
	if groupCount == 0 {
		groupCount = defaultGroupCount
	}
	// Every group needs at least 2 players.
	for groupCount > 1 && len(roster)/groupCount < 2 {
		groupCount--
	}
	if len(roster) < 4 {
		return nil, utils.NewAppError(utils.ErrCodeValidation,
			"Group+knockout needs at least 4 participants", fmt.Sprintf("got %d", len(roster)))
	}

	topN := opts.TopNPerGroup
	if topN == 0 {
		topN = defaultTopN
	}

	// Snake-free simple deal: player i goes to group i mod G.
	groups := make([][]int64, groupCount)
	for i, userID := range roster {
		g := i % groupCount
		groups[g] = append(groups[g], userID)
	}

	var sessions []models.Session
	maxGroupRound := 0
	for g, members := range groups {
		gid := fmt.Sprintf("Group %c", 'A'+g)
		groupSessions, err := generateLeague(t, members, params, opts, models.PhaseGroupStage, &gid, 0)
		if err != nil {
			return nil, err
		}
		for _, s := range groupSessions {
			if s.Round > maxGroupRound {
				maxGroupRound = s.Round
			}
		}
		sessions = append(sessions, groupSessions...)
	}

	qualifiers := groupCount * topN
	bracketSize := nextPowerOfTwo(qualifiers)
	depth := bits.Len(uint(bracketSize)) - 1

	clock := newSlotClock(t.StartDate.AddDate(0, 0, 1), opts.DayStart, params)
	for round := 1; round <= depth; round++ {
		matches := bracketSize / (1 << uint(round)) // bracketSize/2 in round 1
		for m := 1; m <= matches; m++ {
			start, end, field := clock.next()
			title := fmt.Sprintf("%s - Knockout Round %d Match %d", t.Name, round, m)
			if round == depth {
				title = fmt.Sprintf("%s - Final", t.Name)
			}
			sessions = append(sessions, models.Session{
				TournamentID:     t.ID,
				Title:            title,
				DateStart:        start,
				DateEnd:          end,
				CampusID:         opts.CampusID,
				VenueLabel:       params.VenueLabel,
				FieldIndex:       field,
				IsTournamentGame: true,
				Phase:            models.PhaseKnockout,
				Round:            round,
				MatchFormat:      models.MatchHeadToHead,
				ScoringType:      t.ScoringType,
			})
		}
		clock.advanceWave()
	}
	return sessions, nil
}

// SortForDisplay orders sessions chronologically, then by pitch.
func SortForDisplay(sessions []models.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].DateStart != sessions[j].DateStart {
			return sessions[i].DateStart < sessions[j].DateStart
		}
		return sessions[i].FieldIndex < sessions[j].FieldIndex
	})
}
