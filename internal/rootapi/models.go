package rootapi

// Streak is one member's status-update streak as tracked by Root.
type Streak struct {
	Current int `json:"currentStreak"`
	Max     int `json:"maxStreak"`
}

// Member is a club member record. Root returns Streaks as a list that is
// either empty or holds exactly one element.
type Member struct {
	ID        int      `json:"memberId"`
	Name      string   `json:"name"`
	DiscordID string   `json:"discordId"`
	GroupID   int      `json:"groupId"`
	Streaks   []Streak `json:"streak"`
}

// CurrentStreak returns the member's current streak, or zero when Root has
// no streak row yet.
func (m Member) CurrentStreak() int {
	if len(m.Streaks) == 0 {
		return 0
	}
	return m.Streaks[0].Current
}

// MemberStreak is a streak row joined with its owner's id, from the
// standalone streaks query.
type MemberStreak struct {
	MemberID int `json:"memberId"`
	Current  int `json:"currentStreak"`
	Max      int `json:"maxStreak"`
}

// AttendanceRecord is one member's attendance for today. TimeIn is empty
// when the member never checked in; otherwise it is a wall-clock string in
// "HH:MM:SS" form, possibly with a fractional-seconds suffix.
type AttendanceRecord struct {
	Name      string `json:"name"`
	Year      int    `json:"year"`
	IsPresent bool   `json:"isPresent"`
	TimeIn    string `json:"timeIn"`
}
