package stay

import (
	"strings"

	"stationbeds/internal/domain/shared/failure"
)

type OccupantKind string

const (
	KindKnown   OccupantKind = "known"
	KindUnknown OccupantKind = "unknown"
)

// UnknownDisplayName is how every placeholder renders.
const UnknownDisplayName = "Unknown"

// Occupant is either a known person or a placeholder standing in for a
// visitor not yet identified. Placeholders carry their own id so two of them
// never compare equal even though both display as Unknown.
type Occupant struct {
	Kind OccupantKind `json:"kind" bson:"kind"`
	Ref  string       `json:"ref" bson:"ref"`
}

func Known(personID string) Occupant {
	return Occupant{Kind: KindKnown, Ref: strings.TrimSpace(personID)}
}

func Unknown(placeholderID string) Occupant {
	return Occupant{Kind: KindUnknown, Ref: strings.TrimSpace(placeholderID)}
}

// ParseOccupant reverses Key.
func ParseOccupant(key string) (Occupant, error) {
	kind, ref, ok := strings.Cut(strings.TrimSpace(key), ":")
	if !ok {
		return Occupant{}, failure.Invalid("occupant", "expected kind:ref")
	}
	o := Occupant{Kind: OccupantKind(kind), Ref: ref}
	if err := o.Validate(); err != nil {
		return Occupant{}, err
	}
	return o, nil
}

func (o Occupant) Validate() error {
	if o.Kind != KindKnown && o.Kind != KindUnknown {
		return failure.Invalid("occupant", "unknown occupant kind "+string(o.Kind))
	}
	if o.Ref == "" {
		return failure.Invalid("occupant", "reference required")
	}
	return nil
}

func (o Occupant) IsPlaceholder() bool { return o.Kind == KindUnknown }

// Key is the identity string used for storage and merge decisions.
func (o Occupant) Key() string {
	return string(o.Kind) + ":" + o.Ref
}

func (o Occupant) Display() string {
	if o.IsPlaceholder() {
		return UnknownDisplayName
	}
	return o.Ref
}
