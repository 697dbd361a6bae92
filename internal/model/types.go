package model

// UserID is the opaque, stable identifier of a chat participant. It keys all
// per-user state (wallet record and dialogue state).
type UserID string

// ResultRow is one row returned by the analytics query engine: column name to
// a dynamically typed scalar (string, number or nil).
type ResultRow map[string]any

// ResultSet is an ordered sequence of rows, in engine order. Callers must not
// assume it is sorted.
type ResultSet []ResultRow

type EventKind string

const (
	// EventCommand is a named slash-token with no payload.
	EventCommand EventKind = "command"
	// EventMenu is a callback token identifying a previously presented menu item.
	EventMenu EventKind = "menu"
	// EventMessage is free text, consumed only by a pending dialogue.
	EventMessage EventKind = "message"
)

// Event is one inbound chat update, normalized by the transport adapter.
type Event struct {
	Kind     EventKind
	UserID   UserID
	Token    string // command name or menu callback token
	Text     string // free text for message events
	FromName string // display name of the sender, for greetings
}

type ArtifactKind string

const (
	ArtifactText  ArtifactKind = "text"
	ArtifactImage ArtifactKind = "image"
)

// Artifact is one outbound user-facing payload. A handler may emit zero, one
// or several per invocation, in a fixed order.
type Artifact struct {
	Kind    ArtifactKind
	Text    string
	Image   []byte
	Caption string
}

func Text(s string) Artifact { return Artifact{Kind: ArtifactText, Text: s} }

func Image(png []byte, caption string) Artifact {
	return Artifact{Kind: ArtifactImage, Image: png, Caption: caption}
}

// MenuItem is one (label, callback token) pair of the fixed menu.
type MenuItem struct {
	Label string
	Token string
}

// Menu is the fixed, order-stable list of analytics commands, grouped into rows.
type Menu struct {
	Rows [][]MenuItem
}

// Reply is everything a handler emits for one turn: artifacts in order plus an
// optional menu attachment.
type Reply struct {
	Artifacts []Artifact
	Menu      *Menu
}

func TextReply(lines ...string) Reply {
	artifacts := make([]Artifact, 0, len(lines))
	for _, line := range lines {
		artifacts = append(artifacts, Text(line))
	}
	return Reply{Artifacts: artifacts}
}
