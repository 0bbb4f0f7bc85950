package game

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"ArenaDuel/internal/protocol"
)

var (
	ErrRoomFull      = errors.New("room is full")
	ErrRoomClosed    = errors.New("room is closed")
	ErrNotInRoom     = errors.New("player is not in this room")
	ErrAlreadyInRoom = errors.New("player already in this room")
)

type RoomState int

const (
	Forming RoomState = iota
	Running
	Terminated
)

func (s RoomState) String() string {
	switch s {
	case Forming:
		return "forming"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

type RoomConfig struct {
	TickRate int // base ticks per second
	Clock    func() time.Time
	Logger   *slog.Logger
	// ManualTick disables the room's own tick goroutine; the owner calls
	// Step instead.
	ManualTick bool
}

type RoomStats struct {
	ID           uint64  `json:"id"`
	State        string  `json:"state"`
	Players      int     `json:"players"`
	TickRate     int     `json:"tickRate"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
}

// Room is one match. All fields are guarded by mu; methods suffixed
// Locked expect the caller to hold it.
type Room struct {
	ID uint64

	mu          sync.Mutex
	players     []*PlayerState
	state       RoomState
	lastTick    time.Time
	rate        *RateController
	tick        *tickHandle
	baseRate    int
	attackTicks int
	shootTicks  int
	manual      bool
	now         func() time.Time
	log         *slog.Logger
}

func NewRoom(id uint64, cfg RoomConfig) *Room {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DevTickRate
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	now := cfg.Clock()
	r := &Room{
		ID:       id,
		players:  make([]*PlayerState, 0, RoomMaxPlayers),
		rate:     NewRateController(cfg.TickRate, now),
		baseRate: cfg.TickRate,
		manual:   cfg.ManualTick,
		now:      cfg.Clock,
		log:      cfg.Logger.With("room", id),
	}
	r.retimeLocked(cfg.TickRate)
	return r
}

// retimeLocked converts the attack and cooldown durations to ticks of hz
// so they last the same wall time at any effective rate.
func (r *Room) retimeLocked(hz int) {
	r.attackTicks = TicksFor(AttackActiveS, hz)
	r.shootTicks = TicksFor(ShootCooldown, hz)
}

/* ----------------------------- Membership ----------------------------- */

func (r *Room) AddPlayer(id uint64, conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Terminated {
		return ErrRoomClosed
	}
	if r.playerLocked(id) != nil {
		return ErrAlreadyInRoom
	}
	if len(r.players) >= RoomMaxPlayers {
		return ErrRoomFull
	}
	r.players = append(r.players, newPlayerState(id, conn, r.now()))
	r.log.Info("player joined", "player", id, "players", len(r.players))
	return nil
}

// RemovePlayer drops id and returns how many players remain. A running
// match that loses a player stops ticking; an empty room is terminated.
func (r *Room) RemovePlayer(id uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.players {
		if p.ID == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	if r.state == Running && len(r.players) < RoomMaxPlayers {
		r.stopTickLocked()
		r.state = Forming
		r.log.Info("match interrupted", "player", id)
	}
	if len(r.players) == 0 && r.state != Terminated {
		r.stopTickLocked()
		r.state = Terminated
		r.log.Info("room terminated")
	}
	return len(r.players)
}

func (r *Room) Has(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playerLocked(id) != nil
}

func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Room) Stats() RoomStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomStats{
		ID:           r.ID,
		State:        r.state.String(),
		Players:      len(r.players),
		TickRate:     r.rate.Rate(),
		AvgLatencyMs: r.rate.Average(),
	}
}

func (r *Room) playerLocked(id uint64) *PlayerState {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

/* ------------------------------ Lobby flow ----------------------------- */

func (r *Room) SelectFighter(id uint64, fighter string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerLocked(id)
	if p == nil {
		return ErrNotInRoom
	}
	p.Fighter = fighter
	r.broadcastLocked(protocol.FighterSelected{PlayerID: id, Fighter: fighter}, 0)
	return nil
}

// Prepare assigns a fighter and marks the player ready without telling
// anyone. Matchmaking uses it before Start.
func (r *Room) Prepare(id uint64, fighter string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerLocked(id)
	if p == nil {
		return ErrNotInRoom
	}
	p.Fighter = fighter
	p.Ready = true
	return nil
}

// MarkReady flags id as ready and starts the match once both players are.
func (r *Room) MarkReady(id uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerLocked(id)
	if p == nil {
		return false, ErrNotInRoom
	}
	p.Ready = true
	r.broadcastLocked(protocol.PlayerReady{PlayerID: id}, 0)
	for _, other := range r.players {
		if !other.Ready {
			return false, nil
		}
	}
	return r.startLocked(), nil
}

func (r *Room) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startLocked()
}

func (r *Room) startLocked() bool {
	if r.state != Forming || len(r.players) != RoomMaxPlayers {
		return false
	}
	now := r.now()
	spawn := make([]protocol.SpawnFrame, 0, len(r.players))
	for slot, p := range r.players {
		p.X, p.Facing = spawnFor(p.Fighter, slot)
		p.Y = GroundY - PlayerH
		p.Health = MaxHealth
		p.VelocityY = 0
		p.IsJumping = false
		p.Attacking = false
		p.AttackTimer = 0
		p.Blocking = false
		p.Bullets = nil
		p.ShootCooldown = 0
		spawn = append(spawn, protocol.SpawnFrame{ID: p.ID, Fighter: p.Fighter, X: p.X, Y: p.Y, Health: p.Health})
	}
	r.state = Running
	r.lastTick = now
	r.rate = NewRateController(r.baseRate, now)
	r.retimeLocked(r.baseRate)
	r.broadcastLocked(protocol.GameStart{Players: spawn}, 0)
	r.startTickLocked()
	r.log.Info("game started", "tickRate", r.rate.Rate())
	return true
}

func spawnFor(fighter string, slot int) (x float64, facingRight bool) {
	left := slot == 0
	switch fighter {
	case FighterDowand:
		left = true
	case FighterEwon:
		left = false
	}
	if left {
		return ArenaW/4 - PlayerW/2, true
	}
	return ArenaW*3/4 - PlayerW/2, false
}

/* -------------------------------- Input -------------------------------- */

// ApplyInput merges one client input into the player's state. Combat
// only resolves while the match is running.
func (r *Room) ApplyInput(id uint64, in protocol.Input) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerLocked(id)
	if p == nil {
		return ErrNotInRoom
	}
	now := r.now()
	p.LastInputAt = now
	running := r.state == Running

	if in.Movement != nil {
		p.applyMovement(in.Movement)
	}
	if in.Actions != nil {
		attack := in.Actions.Attacking
		switch {
		case attack.Active && !p.Attacking:
			p.Attacking = true
			p.AttackTimer = r.attackTicks
			if running {
				r.resolveMeleeLocked(p, attack.Type)
			}
		case !attack.Active:
			p.Attacking = false
			p.AttackTimer = 0
		}
		p.Blocking = in.Actions.Blocking
	}
	if in.Health != nil {
		p.applyReportedHealth(*in.Health)
	}
	if in.NewBullet != nil && running && p.ShootCooldown <= 0 {
		nb := in.NewBullet
		p.Bullets = append(p.Bullets, Bullet{
			ID:        newBulletID(),
			X:         finite(nb.X, p.X),
			Y:         finite(nb.Y, p.Y),
			VX:        finite(nb.VelocityX, 0),
			VY:        finite(nb.VelocityY, 0),
			OwnerID:   p.ID,
			SpawnedAt: now,
		})
		p.ShootCooldown = r.shootTicks
	}
	return nil
}

// RecordLatency feeds one round-trip sample into the adaptive tick rate.
func (r *Room) RecordLatency(ms float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rate.Record(ms)
}

func newBulletID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

/* ------------------------------- Fan-out ------------------------------- */

// Broadcast sends msg to every player except exclude (0 excludes nobody).
func (r *Room) Broadcast(msg protocol.Message, exclude uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(msg, exclude)
}

func (r *Room) broadcastLocked(msg protocol.Message, exclude uint64) {
	for _, p := range r.players {
		if p.ID == exclude || p.Conn == nil || !p.Conn.Open() {
			continue
		}
		p.Conn.Send(msg)
	}
}

func (r *Room) snapshotLocked(now time.Time) protocol.GameUpdate {
	u := protocol.GameUpdate{
		Timestamp: now.UnixMilli(),
		Players:   make([]protocol.PlayerFrame, 0, len(r.players)),
		Bullets:   make([]protocol.BulletFrame, 0),
	}
	for _, p := range r.players {
		u.Players = append(u.Players, p.frame())
		for _, b := range p.Bullets {
			u.Bullets = append(u.Bullets, protocol.BulletFrame{
				ID:      b.ID,
				X:       int(math.Round(b.X)),
				Y:       int(math.Round(b.Y)),
				OwnerID: b.OwnerID,
			})
		}
	}
	return u
}
