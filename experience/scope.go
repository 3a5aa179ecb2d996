package experience

import "sort"

// scopeRank computes the specificity rank of e against qc, per spec.md
// §4.6's priority order: USER∧PROJECT > USER > TEAM∧PROJECT > TEAM >
// PROJECT > GLOBAL. "Two scopes combine multiplicatively" is read as: an
// experience's declared Scope must match the query context AND, when a
// project id is present on both sides, the project must also match for the
// combined (higher) rank to apply. A rank of 0 means e does not qualify at
// all for qc and should be excluded from results.
func scopeRank(e *Experience, qc QueryContext) int {
	projectMatches := qc.ProjectID != "" && e.Attribution.Project == qc.ProjectID

	switch e.Scope {
	case ScopeUser:
		if e.Attribution.Owner != qc.UserID || qc.UserID == "" {
			return 0
		}
		if projectMatches {
			return 6 // USER ∧ PROJECT
		}
		return 5 // USER
	case ScopeTeam:
		if e.Attribution.Owner != qc.TeamID || qc.TeamID == "" {
			return 0
		}
		if projectMatches {
			return 4 // TEAM ∧ PROJECT
		}
		return 3 // TEAM
	case ScopeProject:
		if !projectMatches {
			return 0
		}
		return 2 // PROJECT
	case ScopeGlobal:
		return 1 // GLOBAL always qualifies
	default:
		return 0
	}
}

// RankAndSort filters candidates to those that qualify for qc (scopeRank >
// 0) and sorts the survivors by scope specificity descending, then
// updated-at descending (spec.md §4.6). Shared between MemoryStore and
// mongostore so the two backends agree on ranking semantics even though
// mongostore can't express the rank as a query-time sort.
func RankAndSort(candidates []*Experience, qc QueryContext) []*Experience {
	type scored struct {
		e    *Experience
		rank int
	}
	scoredList := make([]scored, 0, len(candidates))
	for _, e := range candidates {
		if rank := scopeRank(e, qc); rank > 0 {
			scoredList = append(scoredList, scored{e: e, rank: rank})
		}
	}
	sort.SliceStable(scoredList, func(i, j int) bool {
		if scoredList[i].rank != scoredList[j].rank {
			return scoredList[i].rank > scoredList[j].rank
		}
		return scoredList[i].e.UpdatedAt.After(scoredList[j].e.UpdatedAt)
	})
	out := make([]*Experience, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.e
	}
	return out
}
