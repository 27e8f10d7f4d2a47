package entities

// Blueprint is the schema definition for a family of entities, including the
// relations they may carry. Blueprints are fetched from the catalog on demand
// and never mutated by the reconciler.
type Blueprint struct {
	Identifier string                       `json:"identifier" yaml:"identifier"`
	Title      string                       `json:"title,omitempty" yaml:"title,omitempty"`
	Team       Team                         `json:"team,omitzero" yaml:"team,omitempty"`
	Schema     map[string]any               `json:"schema,omitempty" yaml:"schema,omitempty"`
	Relations  map[string]BlueprintRelation `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// BlueprintRelation describes one relation a blueprint's entities may carry.
type BlueprintRelation struct {
	Target   string `json:"target" yaml:"target"`
	Many     bool   `json:"many,omitempty" yaml:"many,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}
