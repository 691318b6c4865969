package feed

import "sort"

// Viewer is what card selection knows about the person loading the feed
type Viewer struct {
	UserID          string
	Communities     []string
	TrackedPromises []string
	Location        string
	Category        string
}

// SelectQuests picks at most MaxQuestCards unfinished quests: in-progress
// first, then quests offered in the viewer's communities, then by XP reward.
// Category matches only break ties within those groups.
func SelectQuests(all []Quest, viewer Viewer) []Quest {
	communities := toSet(viewer.Communities)

	out := make([]Quest, 0, len(all))
	for _, q := range all {
		if q.status() == QuestCompleted {
			continue
		}
		out = append(out, q)
	}

	inCommunity := func(q Quest) bool {
		_, ok := communities[q.CommunityID]
		return q.CommunityID != "" && ok
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ap, bp := a.status() == QuestInProgress, b.status() == QuestInProgress; ap != bp {
			return ap
		}
		if ac, bc := inCommunity(a), inCommunity(b); ac != bc {
			return ac
		}
		if a.XPReward != b.XPReward {
			return a.XPReward > b.XPReward
		}
		if viewer.Category != "" {
			if am, bm := a.Category == viewer.Category, b.Category == viewer.Category; am != bm {
				return am
			}
		}
		return a.ID < b.ID
	})

	if len(out) > MaxQuestCards {
		out = out[:MaxQuestCards]
	}
	return out
}

// SelectAccountabilityUpdates keeps updates on tracked promises, updates in
// the viewer's location and completed ones; it orders tracked before
// completed before the rest, newest activity first, capped at
// MaxAccountabilityCards.
func SelectAccountabilityUpdates(all []AccountabilityUpdate, viewer Viewer) []AccountabilityUpdate {
	tracked := toSet(viewer.TrackedPromises)
	isTracked := func(u AccountabilityUpdate) bool {
		_, ok := tracked[u.ID]
		return ok
	}

	out := make([]AccountabilityUpdate, 0, len(all))
	for _, u := range all {
		switch {
		case isTracked(u):
		case viewer.Location != "" && u.CommunityID == viewer.Location:
		case u.Status == AccountabilityCompleted:
		default:
			continue
		}
		out = append(out, u)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if at, bt := isTracked(a), isTracked(b); at != bt {
			return at
		}
		if ac, bc := a.Status == AccountabilityCompleted, b.Status == AccountabilityCompleted; ac != bc {
			return ac
		}
		if la, lb := a.lastActivity(), b.lastActivity(); !la.Equal(lb) {
			return la.After(lb)
		}
		return a.ID < b.ID
	})

	if len(out) > MaxAccountabilityCards {
		out = out[:MaxAccountabilityCards]
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
