package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Inbound is one of the message kinds a client may send.
type Inbound interface {
	Kind() Kind
}

// Handle is a session or room id. Clients sometimes echo ids back as
// strings, so both forms decode; anything unparseable becomes zero,
// which never names a live room or session.
type Handle uint64

func (h *Handle) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*h = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		*h = 0
		return nil
	}
	*h = Handle(v)
	return nil
}

type JoinRoom struct {
	RoomID Handle `json:"roomId" jsonschema:"description=Room handle returned by roomCreated"`
}

type CreateRoom struct{}

type SelectFighter struct {
	Fighter string `json:"fighter" jsonschema:"description=Fighter archetype tag such as dowand or ewon"`
}

type Ready struct{}

type PlayerInput struct {
	Input Input `json:"input"`
}

type Ping struct {
	Timestamp float64 `json:"timestamp" jsonschema:"description=Client clock in epoch milliseconds"`
}

type JoinQueue struct{}
type LeaveQueue struct{}
type LeaveRoom struct{}
type GetOnlineCount struct{}

func (JoinRoom) Kind() Kind       { return KindJoinRoom }
func (CreateRoom) Kind() Kind     { return KindCreateRoom }
func (SelectFighter) Kind() Kind  { return KindSelectFighter }
func (Ready) Kind() Kind          { return KindReady }
func (PlayerInput) Kind() Kind    { return KindPlayerInput }
func (Ping) Kind() Kind           { return KindPing }
func (JoinQueue) Kind() Kind      { return KindJoinQueue }
func (LeaveQueue) Kind() Kind     { return KindLeaveQueue }
func (LeaveRoom) Kind() Kind      { return KindLeaveRoom }
func (GetOnlineCount) Kind() Kind { return KindGetOnlineCount }

// Input is the client's view of its own fighter for one frame. Every
// section is optional.
type Input struct {
	Movement  *Movement  `json:"movement,omitempty"`
	Actions   *Actions   `json:"actions,omitempty"`
	Health    *float64   `json:"health,omitempty"`
	NewBullet *NewBullet `json:"newBullet,omitempty"`
}

type Movement struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VelocityY float64 `json:"velocityY"`
	IsJumping bool    `json:"isJumping"`
	Facing    bool    `json:"facing" jsonschema:"description=true when facing right"`
}

type Actions struct {
	Attacking Attack `json:"attacking" jsonschema:"type=string,description=Attack type (arm or leg) or false"`
	Blocking  bool   `json:"blocking"`
}

// Attack carries the attacking field, which the client sends either as
// the attack type string or as false.
type Attack struct {
	Active bool
	Type   string
}

func (a *Attack) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		*a = Attack{}
	case bytes.Equal(data, []byte("true")):
		*a = Attack{Active: true}
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("attacking: %w", err)
		}
		*a = Attack{Active: s != "", Type: s}
	}
	return nil
}

func (a Attack) MarshalJSON() ([]byte, error) {
	if !a.Active {
		return []byte("false"), nil
	}
	if a.Type == "" {
		return []byte("true"), nil
	}
	return json.Marshal(a.Type)
}

type NewBullet struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VelocityX float64 `json:"velocityX"`
	VelocityY float64 `json:"velocityY"`
}

var inboundKinds = map[Kind]func() Inbound{
	KindJoinRoom:       func() Inbound { return &JoinRoom{} },
	KindCreateRoom:     func() Inbound { return &CreateRoom{} },
	KindSelectFighter:  func() Inbound { return &SelectFighter{} },
	KindReady:          func() Inbound { return &Ready{} },
	KindPlayerInput:    func() Inbound { return &PlayerInput{} },
	KindPing:           func() Inbound { return &Ping{} },
	KindJoinQueue:      func() Inbound { return &JoinQueue{} },
	KindLeaveQueue:     func() Inbound { return &LeaveQueue{} },
	KindLeaveRoom:      func() Inbound { return &LeaveRoom{} },
	KindGetOnlineCount: func() Inbound { return &GetOnlineCount{} },
}

// Decode parses one client frame into its typed message. The result is
// always a pointer to one of the message structs above.
func Decode(data []byte) (Inbound, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	newMsg, ok := inboundKinds[head.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
	msg := newMsg()
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, head.Type, err)
	}
	return msg, nil
}
