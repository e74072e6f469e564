// Package listview builds the conversation sidebar: archive partition,
// search filter, pinned-first ordering and date groups.
package listview

import (
	"sort"
	"strings"
	"time"

	"github.com/set-night/chatapp/internal/config"
	"github.com/set-night/chatapp/internal/domain"
)

type Group string

const (
	GroupToday      Group = "Today"
	GroupYesterday  Group = "Yesterday"
	GroupPrevious7  Group = "Previous 7 Days"
	GroupPrevious30 Group = "Previous 30 Days"
	GroupOlder      Group = "Older"
)

// Groups lists every group in display order.
var Groups = []Group{GroupToday, GroupYesterday, GroupPrevious7, GroupPrevious30, GroupOlder}

// ParseGroup accepts a group name case-insensitively.
func ParseGroup(s string) (Group, bool) {
	s = strings.TrimSpace(s)
	for _, g := range Groups {
		if strings.EqualFold(string(g), s) {
			return g, true
		}
	}
	return "", false
}

type Options struct {
	Query     string
	Archived  bool
	Collapsed map[Group]bool
	Now       time.Time
	Location  *time.Location
}

type Section struct {
	Group         Group                 `json:"group"`
	Collapsed     bool                  `json:"collapsed"`
	Conversations []domain.Conversation `json:"conversations"`
}

type View struct {
	Query    string    `json:"query"`
	Archived bool      `json:"archived"`
	Total    int       `json:"total"`
	Sections []Section `json:"sections"`
}

// Build renders the list. It does not modify its input.
func Build(conversations []domain.Conversation, opts Options) View {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	query := strings.ToLower(strings.TrimSpace(opts.Query))

	visible := make([]domain.Conversation, 0, len(conversations))
	for _, c := range conversations {
		if c.IsArchived != opts.Archived {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(displayTitle(c)), query) {
			continue
		}
		visible = append(visible, c)
	}
	Sort(visible)

	byGroup := make(map[Group][]domain.Conversation, len(Groups))
	for _, c := range visible {
		g := GroupFor(c.ActivityAt(), now, loc)
		byGroup[g] = append(byGroup[g], c)
	}

	view := View{Query: strings.TrimSpace(opts.Query), Archived: opts.Archived, Total: len(visible), Sections: []Section{}}
	for _, g := range Groups {
		if len(byGroup[g]) == 0 {
			continue
		}
		view.Sections = append(view.Sections, Section{
			Group:         g,
			Collapsed:     opts.Collapsed[g],
			Conversations: byGroup[g],
		})
	}
	return view
}

// Sort orders pinned conversations first, then by most recent activity.
// Ties keep their input order.
func Sort(conversations []domain.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := &conversations[i], &conversations[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		return a.ActivityAt().After(b.ActivityAt())
	})
}

// GroupFor buckets t by calendar day relative to now in loc. Days after
// today fall into GroupPrevious7 along with the last week.
func GroupFor(t, now time.Time, loc *time.Location) Group {
	today := startOfDay(now.In(loc))
	day := startOfDay(t.In(loc))

	switch {
	case day.Equal(today):
		return GroupToday
	case day.Equal(today.AddDate(0, 0, -1)):
		return GroupYesterday
	case !day.Before(today.AddDate(0, 0, -7)):
		return GroupPrevious7
	case !day.Before(today.AddDate(0, 0, -30)):
		return GroupPrevious30
	default:
		return GroupOlder
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ToggleGroup returns a new collapsed set with g flipped.
func ToggleGroup(collapsed map[Group]bool, g Group) map[Group]bool {
	out := make(map[Group]bool, len(collapsed)+1)
	for k, v := range collapsed {
		if v {
			out[k] = true
		}
	}
	if out[g] {
		delete(out, g)
	} else {
		out[g] = true
	}
	return out
}

func displayTitle(c domain.Conversation) string {
	if c.Title == "" {
		return config.DefaultConversationTitle
	}
	return c.Title
}
