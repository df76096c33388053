package domain

import "strings"

// User identifies the sender of a chat message.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName returns "@username" when a handle exists, otherwise the trimmed
// first and last name. The result may be empty.
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IncomingMessage is an inbound text message.
type IncomingMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	From      User
}

// IncomingCallback is an inbound press of an inline button.
type IncomingCallback struct {
	ID        string
	ChatID    int64
	MessageID int // message carrying the button
	Data      string
	From      User
}

// Update is a single inbound chat event. Exactly one field is set.
type Update struct {
	ID       int
	Message  *IncomingMessage
	Callback *IncomingCallback
}

// MemberStatus is a chat member's role.
type MemberStatus string

const (
	MemberCreator       MemberStatus = "creator"
	MemberAdministrator MemberStatus = "administrator"
	MemberMember        MemberStatus = "member"
	MemberRestricted    MemberStatus = "restricted"
	MemberLeft          MemberStatus = "left"
	MemberKicked        MemberStatus = "kicked"
)

// Membership describes the bot's own standing in a chat.
type Membership struct {
	Status            MemberStatus
	CanDeleteMessages bool
}

// CanDeleteOthers reports whether the member may delete other users' messages.
func (m Membership) CanDeleteOthers() bool {
	switch m.Status {
	case MemberCreator:
		return true
	case MemberAdministrator:
		return m.CanDeleteMessages
	default:
		return false
	}
}

// LinkKey identifies a delivered video by requester and originating message.
type LinkKey struct {
	RequesterID int64
	MessageID   int
}

// ModerationOutcome is the result of trying to delete the original message.
type ModerationOutcome string

const (
	ModerationDeleted          ModerationOutcome = "deleted"
	ModerationNotAllowed       ModerationOutcome = "not_allowed"
	ModerationPermissionDenied ModerationOutcome = "permission_denied"
	ModerationNotFound         ModerationOutcome = "not_found"
	ModerationFailed           ModerationOutcome = "failed"
)

// Expected reports whether the outcome is a normal, non-alarming result.
func (o ModerationOutcome) Expected() bool {
	return o != ModerationFailed
}

// Button is a single inline control attached to a message.
type Button struct {
	Label string
	Data  string
}

// VideoUpload describes a video attachment to send.
type VideoUpload struct {
	ChatID            int64
	ReplyTo           int
	Path              string
	Caption           string
	SupportsStreaming bool
}

// AudioUpload describes an audio attachment to send.
type AudioUpload struct {
	ChatID    int64
	Path      string
	Caption   string
	Title     string
	Performer string
}
