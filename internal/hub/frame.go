package hub

import (
	"encoding/json"
	"errors"
	"strings"
)

// FrameKind tags the validated form of an inbound client frame.
type FrameKind string

const (
	// FrameRename binds the sender's display name.
	FrameRename FrameKind = "rename"

	// FrameChat fans a chat line out to every open connection.
	FrameChat FrameKind = "chat"
)

// Frame is the validated form of a client->server message. Raw frames are
// duck-typed JSON ({name?, text?}); DecodeFrame inspects field presence and
// produces exactly one tagged kind.
type Frame struct {
	Kind FrameKind
	Name string
	Text string
}

var errEmptyFrame = errors.New("frame carries neither name nor text")

// DecodeFrame validates a raw inbound frame at the boundary, before any
// dispatch happens.
func DecodeFrame(data []byte) (Frame, error) {
	var raw struct {
		Name string `json:"name"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Frame{}, err
	}

	raw.Name = strings.TrimSpace(raw.Name)
	switch {
	case raw.Name != "":
		return Frame{Kind: FrameRename, Name: raw.Name}, nil
	case raw.Text != "":
		return Frame{Kind: FrameChat, Text: raw.Text}, nil
	default:
		return Frame{}, errEmptyFrame
	}
}

// ChatEvent is the server->all payload for a chat line. It is also the
// payload published on the event bus, so every instance fans it out.
type ChatEvent struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// UserListEvent is the server->all payload emitted whenever the set of
// connected clients changes.
type UserListEvent struct {
	List []string `json:"list"`
}
