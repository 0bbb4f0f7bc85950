package game

import "ArenaDuel/internal/protocol"

type hitOutcome struct {
	damage    int
	blocked   bool
	knockback float64
}

// strike applies damage and knockback to target. A blocking target takes
// no damage and only blockFactor of the knockback. dir is +1 or -1.
func strike(target *PlayerState, damage int, blockFactor, dir float64) hitOutcome {
	out := hitOutcome{damage: damage, blocked: target.Blocking, knockback: KnockbackBase}
	if out.blocked {
		out.damage = 0
		out.knockback *= blockFactor
	}
	out.knockback *= dir
	target.Health = max(0, target.Health-out.damage)
	target.X = Clamp(target.X+out.knockback, 0, MaxX)
	return out
}

func meleeBox(attacker *PlayerState, spec AttackSpec) Box {
	x := attacker.X - spec.RangeX
	if attacker.Facing {
		x = attacker.X + PlayerW
	}
	return Box{X: x, Y: attacker.Y + MeleeOffsetY, W: spec.RangeX, H: spec.RangeY}
}

// resolveMeleeLocked tests attacker's hitbox against every other player
// and broadcasts a playerHit for each one struck. Unknown attack types do
// nothing.
func (r *Room) resolveMeleeLocked(attacker *PlayerState, kind string) {
	spec, ok := LookupAttack(kind)
	if !ok {
		return
	}
	hitbox := meleeBox(attacker, spec)
	dir := -1.0
	if attacker.Facing {
		dir = 1
	}
	for _, target := range r.players {
		if target.ID == attacker.ID || !hitbox.Overlaps(target.body()) {
			continue
		}
		out := strike(target, spec.Damage, MeleeBlockKB, dir)
		r.broadcastLocked(protocol.PlayerHit{
			AttackerID:   attacker.ID,
			TargetID:     target.ID,
			Damage:       out.damage,
			TargetHealth: target.Health,
			Blocked:      out.blocked,
			Knockback:    out.knockback,
		}, 0)
	}
}

// advanceBulletsLocked moves every live bullet, drops the ones that left
// the arena and resolves at most one hit per bullet.
func (r *Room) advanceBulletsLocked(k float64) {
	for _, owner := range r.players {
		kept := owner.Bullets[:0]
		for _, b := range owner.Bullets {
			b.X += b.VX * k
			b.Y += b.VY * k
			if b.outOfBounds() {
				continue
			}
			if r.bulletHitLocked(owner, b) {
				continue
			}
			kept = append(kept, b)
		}
		clear(owner.Bullets[len(kept):])
		owner.Bullets = kept
	}
}

func (r *Room) bulletHitLocked(owner *PlayerState, b Bullet) bool {
	for _, target := range r.players {
		if target.ID == owner.ID || !b.box().Overlaps(target.body()) {
			continue
		}
		dir := -1.0
		if b.VX > 0 {
			dir = 1
		}
		out := strike(target, BulletDamage, BulletBlockKB, dir)
		r.broadcastLocked(protocol.BulletHit{
			ShooterID:    owner.ID,
			TargetID:     target.ID,
			Damage:       out.damage,
			TargetHealth: target.Health,
			Blocked:      out.blocked,
			Knockback:    out.knockback,
			BulletID:     b.ID,
		}, 0)
		return true
	}
	return false
}
