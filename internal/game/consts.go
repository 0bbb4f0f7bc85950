package game

import "time"

const (
	ArenaW         = 640.0
	ArenaH         = 360.0
	PlayerW        = 70.0
	PlayerH        = 70.0
	GroundY        = ArenaH - 50 // floor line; a standing fighter's top is GroundY-PlayerH
	MaxX           = ArenaW - PlayerW
	MaxInputY      = ArenaH - PlayerH
	MaxHealth      = 100
	RoomMaxPlayers = 2

	ReferenceHz   = 60.0 // client frame rate; velocities are pixels per reference frame
	Gravity       = 0.8  // per reference frame
	DevTickRate   = 60
	ProdTickRate  = 30
	MinTickRate   = 15
	AttackActiveS = 0.5
	ShootCooldown = 0.5 // seconds

	MeleeOffsetY   = 25.0
	KnockbackBase  = 15.0
	MeleeBlockKB   = 0.3
	BulletBlockKB  = 0.2
	BulletDamage   = 10
	BulletW        = 10.0
	BulletH        = 5.0
	BulletOOBSlack = 20.0

	LatencyWindow  = 20
	RateAdjustGap  = 10 * time.Second
	HighLatencyMs  = 200.0
	LowLatencyMs   = 100.0
	MaxLatencyMs   = 10000.0
	RateStepDown   = 5
	RateStepUp     = 2
)

const (
	FighterDowand = "dowand" // spawns left, facing right
	FighterEwon   = "ewon"   // spawns right, facing left
)

// AttackSpec is the reach and damage of one melee move.
type AttackSpec struct {
	RangeX float64
	RangeY float64
	Damage int
}

var attacks = map[string]AttackSpec{
	"arm": {RangeX: 80, RangeY: 40, Damage: 15},
	"leg": {RangeX: 70, RangeY: 50, Damage: 20},
}

func LookupAttack(kind string) (AttackSpec, bool) {
	spec, ok := attacks[kind]
	return spec, ok
}

// DefaultFighter is the archetype a matchmade slot gets when its session
// never picked one.
func DefaultFighter(slot int) string {
	if slot == 0 {
		return FighterDowand
	}
	return FighterEwon
}
