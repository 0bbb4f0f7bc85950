package game

import (
	"math"
	"time"

	"ArenaDuel/internal/protocol"
)

// Conn is the room's view of a player's connection. Send never blocks;
// frames to a closed connection are dropped.
type Conn interface {
	Send(msg protocol.Message)
	Open() bool
}

type Bullet struct {
	ID        string
	X, Y      float64
	VX, VY    float64
	OwnerID   uint64
	SpawnedAt time.Time
}

func (b Bullet) box() Box { return Box{X: b.X, Y: b.Y, W: BulletW, H: BulletH} }

func (b Bullet) outOfBounds() bool {
	return b.X < -BulletOOBSlack || b.X > ArenaW+BulletOOBSlack ||
		b.Y < -BulletOOBSlack || b.Y > ArenaH+BulletOOBSlack
}

// PlayerState is one fighter inside a room.
type PlayerState struct {
	ID            uint64
	Conn          Conn
	Ready         bool
	Fighter       string
	X, Y          float64
	VelocityY     float64
	IsJumping     bool
	Facing        bool // true = right
	Health        int
	Attacking     bool
	AttackTimer   int
	Blocking      bool
	Bullets       []Bullet
	ShootCooldown int
	LastInputAt   time.Time
}

func newPlayerState(id uint64, conn Conn, now time.Time) *PlayerState {
	return &PlayerState{
		ID:          id,
		Conn:        conn,
		Facing:      true,
		Health:      MaxHealth,
		LastInputAt: now,
	}
}

func (p *PlayerState) body() Box { return Box{X: p.X, Y: p.Y, W: PlayerW, H: PlayerH} }

// integrate advances one tick of gravity. k is FrameScale of the current rate.
func (p *PlayerState) integrate(k float64) {
	p.VelocityY += Gravity * k
	p.Y += p.VelocityY * k
	if p.Y+PlayerH >= GroundY {
		p.Y = GroundY - PlayerH
		p.VelocityY = 0
		p.IsJumping = false
	}
	p.X = Clamp(p.X, 0, MaxX)
	if p.Y < 0 {
		p.Y = 0
	}
}

func (p *PlayerState) decayTimers() {
	if p.ShootCooldown > 0 {
		p.ShootCooldown--
	}
	if p.AttackTimer > 0 {
		p.AttackTimer--
		if p.AttackTimer == 0 {
			p.Attacking = false
		}
	}
}

func (p *PlayerState) applyMovement(m *protocol.Movement) {
	p.X = Clamp(finite(m.X, p.X), 0, MaxX)
	p.Y = Clamp(finite(m.Y, p.Y), 0, MaxInputY)
	p.VelocityY = finite(m.VelocityY, 0)
	p.IsJumping = m.IsJumping
	p.Facing = m.Facing
}

// applyReportedHealth accepts a client health value only when it does not
// exceed what the server already holds.
func (p *PlayerState) applyReportedHealth(h float64) {
	if math.IsNaN(h) {
		return
	}
	v := int(math.Round(Clamp(h, 0, MaxHealth)))
	if v < p.Health {
		p.Health = v
	}
}

func (p *PlayerState) frame() protocol.PlayerFrame {
	return protocol.PlayerFrame{
		ID:        p.ID,
		X:         int(math.Round(p.X)),
		Y:         int(math.Round(p.Y)),
		VelocityY: math.Round(p.VelocityY*10) / 10,
		IsJumping: p.IsJumping,
		Facing:    p.Facing,
		Attacking: p.Attacking,
		Blocking:  p.Blocking,
		Health:    p.Health,
		Fighter:   p.Fighter,
	}
}

func finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
