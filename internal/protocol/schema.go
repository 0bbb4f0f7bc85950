package protocol

import (
	"sort"

	"github.com/invopop/jsonschema"
)

// Catalog maps every message kind to the JSON Schema of its payload
// fields. The "type" discriminator is implied by the key.
type Catalog struct {
	Inbound  map[Kind]*jsonschema.Schema `json:"inbound"`
	Outbound map[Kind]*jsonschema.Schema `json:"outbound"`
}

var outboundSamples = []Message{
	Connected{}, RoomCreated{}, RoomJoined{}, PlayerJoined{}, Error{},
	FighterSelected{}, PlayerReady{}, GameStart{}, GameUpdate{}, PlayerHit{},
	BulletHit{}, PlayerDisconnected{}, Pong{}, QueueJoined{}, QueueLeft{},
	MatchFound{}, OnlineStats{}, RoomLeft{},
}

// BuildCatalog reflects the message structs into schemas.
func BuildCatalog() Catalog {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	cat := Catalog{
		Inbound:  make(map[Kind]*jsonschema.Schema, len(inboundKinds)),
		Outbound: make(map[Kind]*jsonschema.Schema, len(outboundSamples)),
	}
	for _, kind := range InboundKinds() {
		s := reflector.Reflect(inboundKinds[kind]())
		s.Title = string(kind)
		cat.Inbound[kind] = s
	}
	for _, msg := range outboundSamples {
		s := reflector.Reflect(msg)
		s.Title = string(msg.Kind())
		cat.Outbound[msg.Kind()] = s
	}
	return cat
}

// InboundKinds lists the accepted client message kinds in sorted order.
func InboundKinds() []Kind {
	kinds := make([]Kind, 0, len(inboundKinds))
	for k := range inboundKinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
