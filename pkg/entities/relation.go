package entities

import "encoding/json"

// Relation is a named reference from one entity to one or more target
// identifiers within the relation's target blueprint.
type Relation struct {
	// Many indicates the relation serializes as a list of targets.
	Many bool

	targets []string
}

// RelationTo builds a single-target relation. An empty target means the
// relation is unset.
func RelationTo(target string) Relation {
	if target == "" {
		return Relation{}
	}
	return Relation{targets: []string{target}}
}

// RelationToMany builds a many-target relation.
func RelationToMany(targets ...string) Relation {
	return Relation{Many: true, targets: targets}
}

// Targets returns the relation's target identifiers.
func (r Relation) Targets() []string {
	return r.targets
}

// Target returns the single target of a non-many relation, or the empty
// string when unset.
func (r Relation) Target() string {
	if len(r.targets) == 0 {
		return ""
	}
	return r.targets[0]
}

// IsZero reports whether the relation has no targets.
func (r Relation) IsZero() bool {
	return len(r.targets) == 0
}

// Equal compares two relations by target list.
func (r Relation) Equal(other Relation) bool {
	if r.Many != other.Many || len(r.targets) != len(other.targets) {
		return false
	}
	for i := range r.targets {
		if r.targets[i] != other.targets[i] {
			return false
		}
	}
	return true
}

// MarshalJSON writes a bare string for single-target relations and a list
// for many-target relations.
func (r Relation) MarshalJSON() ([]byte, error) {
	if r.Many {
		if r.targets == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.targets)
	}
	if len(r.targets) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(r.targets[0])
}

// UnmarshalJSON accepts a string, a list of strings, or null.
func (r *Relation) UnmarshalJSON(data []byte) error {
	*r = Relation{}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			r.targets = []string{single}
		}
		return nil
	}

	var null any
	if err := json.Unmarshal(data, &null); err == nil && null == nil {
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	r.Many = true
	r.targets = many
	return nil
}
