package database

import (
	"time"
)

// GuildProfile - DB record for guild moderation settings
type GuildProfile struct {
	ID              string
	MemberRoleID    string
	ModeratorRoleID string
	WaitChannelID   string
	LawsChannelID   string
	ModChannelID    string

	// Tuning, zero values fall back to the config defaults
	HashThreshold   int
	TextThreshold   float64
	RepostThreshold int
	GlobalMatch     bool
}

// MemberState - Admission record for a (guild, member) pair
type MemberState struct {
	GuildID  string
	MemberID string
	Trusted  bool
	JoinedAt time.Time
	// Bumped on every committed transition
	Version uint64
}

// Disposition of a stored hash record
const (
	DispositionObserved = "observed"
	DispositionFlagged  = "flagged"
	DispositionCleared  = "cleared"
)

// HashRecord - A known image hash with provenance
type HashRecord struct {
	Hash        uint64
	GuildID     string
	MessageID   string
	AuthorID    string
	Attachment  int
	FirstSeen   time.Time
	Disposition string
}
