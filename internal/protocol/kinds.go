package protocol

import "errors"

// Kind is the value of the "type" field every frame carries.
type Kind string

/* ------------------------------ Inbound ------------------------------ */

const (
	KindJoinRoom       Kind = "joinRoom"
	KindCreateRoom     Kind = "createRoom"
	KindSelectFighter  Kind = "selectFighter"
	KindReady          Kind = "ready"
	KindPlayerInput    Kind = "playerInput"
	KindPing           Kind = "ping"
	KindJoinQueue      Kind = "joinQueue"
	KindLeaveQueue     Kind = "leaveQueue"
	KindLeaveRoom      Kind = "leaveRoom"
	KindGetOnlineCount Kind = "getOnlineCount"
)

/* ------------------------------ Outbound ----------------------------- */

const (
	KindConnected          Kind = "connected"
	KindRoomCreated        Kind = "roomCreated"
	KindRoomJoined         Kind = "roomJoined"
	KindPlayerJoined       Kind = "playerJoined"
	KindError              Kind = "error"
	KindFighterSelected    Kind = "fighterSelected"
	KindPlayerReady        Kind = "playerReady"
	KindGameStart          Kind = "gameStart"
	KindGameUpdate         Kind = "gameUpdate"
	KindPlayerHit          Kind = "playerHit"
	KindBulletHit          Kind = "bulletHit"
	KindPlayerDisconnected Kind = "playerDisconnected"
	KindPong               Kind = "pong"
	KindQueueJoined        Kind = "queueJoined"
	KindQueueLeft          Kind = "queueLeft"
	KindMatchFound         Kind = "matchFound"
	KindOnlineStats        Kind = "onlineStats"
	KindRoomLeft           Kind = "roomLeft"
)

var (
	ErrMalformed   = errors.New("protocol: malformed frame")
	ErrUnknownType = errors.New("protocol: unknown message type")
)
