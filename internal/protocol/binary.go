package protocol

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Binary gameUpdate layout (protobuf wire format, no generated code):
//
//	GameUpdate  { 1: timestamp varint, 2: repeated Player bytes, 3: repeated Bullet bytes }
//	Player      { 1: id varint, 2: x zigzag, 3: y zigzag, 4: velocityY*10 zigzag,
//	              5: flags varint, 6: health varint, 7: fighter string }
//	Bullet      { 1: id string, 2: x zigzag, 3: y zigzag, 4: ownerId varint }
//
// Clients opt in with ?encoding=binary; every other message stays JSON.

const (
	flagJumping = 1 << iota
	flagFacing
	flagAttacking
	flagBlocking
)

// EncodeGameUpdate renders u as a binary frame.
func EncodeGameUpdate(u GameUpdate) []byte {
	b := make([]byte, 0, 16+len(u.Players)*24+len(u.Bullets)*48)
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(u.Timestamp))
	for _, p := range u.Players {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, appendPlayer(nil, p))
	}
	for _, bl := range u.Bullets {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, appendBullet(nil, bl))
	}
	return b
}

func appendPlayer(b []byte, p PlayerFrame) []byte {
	var flags uint64
	if p.IsJumping {
		flags |= flagJumping
	}
	if p.Facing {
		flags |= flagFacing
	}
	if p.Attacking {
		flags |= flagAttacking
	}
	if p.Blocking {
		flags |= flagBlocking
	}
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, p.ID)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(p.X)))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(p.Y)))
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(math.Round(p.VelocityY*10))))
	b = protowire.AppendTag(b, 5, protowire.VarintType)
	b = protowire.AppendVarint(b, flags)
	b = protowire.AppendTag(b, 6, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(max(p.Health, 0)))
	if p.Fighter != "" {
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendString(b, p.Fighter)
	}
	return b
}

func appendBullet(b []byte, bl BulletFrame) []byte {
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, bl.ID)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(bl.X)))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(bl.Y)))
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, bl.OwnerID)
	return b
}

// DecodeGameUpdate parses a frame produced by EncodeGameUpdate. Unknown
// fields are skipped.
func DecodeGameUpdate(b []byte) (GameUpdate, error) {
	var u GameUpdate
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch {
		case num == 1 && typ == protowire.VarintType:
			u.Timestamp = int64(v)
		case num == 2 && typ == protowire.BytesType:
			p, err := decodePlayer(raw)
			if err != nil {
				return err
			}
			u.Players = append(u.Players, p)
		case num == 3 && typ == protowire.BytesType:
			bl, err := decodeBullet(raw)
			if err != nil {
				return err
			}
			u.Bullets = append(u.Bullets, bl)
		}
		return nil
	})
	if err != nil {
		return GameUpdate{}, fmt.Errorf("decode gameUpdate: %w", err)
	}
	return u, nil
}

func decodePlayer(b []byte) (PlayerFrame, error) {
	var p PlayerFrame
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch num {
		case 1:
			p.ID = v
		case 2:
			p.X = int(protowire.DecodeZigZag(v))
		case 3:
			p.Y = int(protowire.DecodeZigZag(v))
		case 4:
			p.VelocityY = float64(protowire.DecodeZigZag(v)) / 10
		case 5:
			p.IsJumping = v&flagJumping != 0
			p.Facing = v&flagFacing != 0
			p.Attacking = v&flagAttacking != 0
			p.Blocking = v&flagBlocking != 0
		case 6:
			p.Health = int(v)
		case 7:
			p.Fighter = string(raw)
		}
		return nil
	})
	return p, err
}

func decodeBullet(b []byte) (BulletFrame, error) {
	var bl BulletFrame
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch num {
		case 1:
			bl.ID = string(raw)
		case 2:
			bl.X = int(protowire.DecodeZigZag(v))
		case 3:
			bl.Y = int(protowire.DecodeZigZag(v))
		case 4:
			bl.OwnerID = v
		}
		return nil
	})
	return bl, err
}

func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		var (
			v   uint64
			raw []byte
		)
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := fn(num, typ, v, raw); err != nil {
			return err
		}
	}
	return nil
}
