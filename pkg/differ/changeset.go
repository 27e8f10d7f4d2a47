package differ

import (
	"fmt"
	"strings"

	"github.com/harborsync/harborsync/pkg/entities"
)

// Changeset represents the difference between a before and after entity set.
type Changeset struct {
	Created  []entities.Entity // Entities present only in after
	Modified []entities.Entity // Entities present in both whose state differs
	Deleted  []entities.Entity // Entities present only in before
	Summary  Summary           // Summary statistics
}

// Summary provides summary statistics for a changeset.
type Summary struct {
	Created      int
	Modified     int
	Deleted      int
	KnownBefore  int
	TotalChanges int
}

// calculateSummary computes the summary for a changeset.
func (c *Changeset) calculateSummary(knownBefore int) {
	c.Summary = Summary{
		Created:      len(c.Created),
		Modified:     len(c.Modified),
		Deleted:      len(c.Deleted),
		KnownBefore:  knownBefore,
		TotalChanges: len(c.Created) + len(c.Modified) + len(c.Deleted),
	}
}

// HasChanges returns true if the changeset contains any changes.
func (c *Changeset) HasChanges() bool {
	return c.Summary.TotalChanges > 0
}

// IsEmpty returns true if the changeset contains no changes.
func (c *Changeset) IsEmpty() bool {
	return c.Summary.TotalChanges == 0
}

// Upserts returns the created and modified entities in a single list, the
// order the applier consumes them in.
func (c *Changeset) Upserts() []entities.Entity {
	upserts := make([]entities.Entity, 0, len(c.Created)+len(c.Modified))
	upserts = append(upserts, c.Created...)
	upserts = append(upserts, c.Modified...)
	return upserts
}

// String returns a human-readable summary of the changeset.
func (c *Changeset) String() string {
	if c.IsEmpty() {
		return "No changes detected"
	}

	parts := []string{}
	if len(c.Created) > 0 {
		parts = append(parts, fmt.Sprintf("%d created", len(c.Created)))
	}
	if len(c.Modified) > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", len(c.Modified)))
	}
	if len(c.Deleted) > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", len(c.Deleted)))
	}

	return fmt.Sprintf("Changeset: %s (Total: %d changes)", strings.Join(parts, ", "), c.Summary.TotalChanges)
}
