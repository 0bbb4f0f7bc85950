package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Message is anything the server sends to a client.
type Message interface {
	Kind() Kind
}

type Connected struct {
	PlayerID uint64 `json:"playerId"`
}

type RoomCreated struct {
	RoomID uint64 `json:"roomId"`
}

type RoomJoined struct {
	RoomID       uint64 `json:"roomId"`
	PlayersCount int    `json:"playersCount"`
}

type PlayerJoined struct {
	PlayerID     uint64 `json:"playerId"`
	PlayersCount int    `json:"playersCount"`
}

type Error struct {
	Message string `json:"message"`
}

type FighterSelected struct {
	PlayerID uint64 `json:"playerId"`
	Fighter  string `json:"fighter"`
}

type PlayerReady struct {
	PlayerID uint64 `json:"playerId"`
}

type SpawnFrame struct {
	ID      uint64  `json:"id"`
	Fighter string  `json:"fighter"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Health  int     `json:"health"`
}

type GameStart struct {
	Players []SpawnFrame `json:"players"`
}

// PlayerFrame is one fighter inside a gameUpdate. Positions are rounded
// to whole pixels and velocityY to one decimal.
type PlayerFrame struct {
	ID        uint64  `json:"id"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	VelocityY float64 `json:"velocityY"`
	IsJumping bool    `json:"isJumping"`
	Facing    bool    `json:"facing"`
	Attacking bool    `json:"attacking"`
	Blocking  bool    `json:"blocking"`
	Health    int     `json:"health"`
	Fighter   string  `json:"fighter"`
}

type BulletFrame struct {
	ID      string `json:"id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	OwnerID uint64 `json:"ownerId"`
}

type GameUpdate struct {
	Timestamp int64         `json:"timestamp"`
	Players   []PlayerFrame `json:"players"`
	Bullets   []BulletFrame `json:"bullets"`
}

type PlayerHit struct {
	AttackerID   uint64  `json:"attackerId"`
	TargetID     uint64  `json:"targetId"`
	Damage       int     `json:"damage"`
	TargetHealth int     `json:"targetHealth"`
	Blocked      bool    `json:"blocked"`
	Knockback    float64 `json:"knockback"`
}

type BulletHit struct {
	ShooterID    uint64  `json:"shooterId"`
	TargetID     uint64  `json:"targetId"`
	Damage       int     `json:"damage"`
	TargetHealth int     `json:"targetHealth"`
	Blocked      bool    `json:"blocked"`
	Knockback    float64 `json:"knockback"`
	BulletID     string  `json:"bulletId"`
}

type PlayerDisconnected struct {
	PlayerID uint64 `json:"playerId"`
}

type Pong struct {
	Timestamp  float64 `json:"timestamp"`
	ServerTime int64   `json:"serverTime"`
}

type QueueJoined struct {
	Position int `json:"position"`
}

type QueueLeft struct{}

type MatchFound struct {
	RoomID   uint64 `json:"roomId"`
	Opponent uint64 `json:"opponent"`
}

type OnlineStats struct {
	OnlineCount int `json:"onlineCount"`
	QueueCount  int `json:"queueCount"`
}

type RoomLeft struct{}

func (Connected) Kind() Kind          { return KindConnected }
func (RoomCreated) Kind() Kind        { return KindRoomCreated }
func (RoomJoined) Kind() Kind         { return KindRoomJoined }
func (PlayerJoined) Kind() Kind       { return KindPlayerJoined }
func (Error) Kind() Kind              { return KindError }
func (FighterSelected) Kind() Kind    { return KindFighterSelected }
func (PlayerReady) Kind() Kind        { return KindPlayerReady }
func (GameStart) Kind() Kind          { return KindGameStart }
func (GameUpdate) Kind() Kind         { return KindGameUpdate }
func (PlayerHit) Kind() Kind          { return KindPlayerHit }
func (BulletHit) Kind() Kind          { return KindBulletHit }
func (PlayerDisconnected) Kind() Kind { return KindPlayerDisconnected }
func (Pong) Kind() Kind               { return KindPong }
func (QueueJoined) Kind() Kind        { return KindQueueJoined }
func (QueueLeft) Kind() Kind          { return KindQueueLeft }
func (MatchFound) Kind() Kind         { return KindMatchFound }
func (OnlineStats) Kind() Kind        { return KindOnlineStats }
func (RoomLeft) Kind() Kind           { return KindRoomLeft }

// Encode renders msg as a flat JSON object whose first field is "type".
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encode %s: payload is not an object", msg.Kind())
	}
	out := make([]byte, 0, len(body)+len(msg.Kind())+10)
	out = append(out, `{"type":`...)
	out = strconv.AppendQuote(out, string(msg.Kind()))
	if len(body) > 2 {
		out = append(out, ',')
	}
	return append(out, body[1:]...), nil
}

// ErrorMessage builds the error reply clients display verbatim.
func ErrorMessage(format string, args ...any) Error {
	return Error{Message: fmt.Sprintf(format, args...)}
}
