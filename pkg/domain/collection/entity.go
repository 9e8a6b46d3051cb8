package collection

import (
	"fmt"
	"time"

	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/domain/shared"
)

// PopulatedState is the optimistic completion flag of a collection:
// whether all elements have been materialized.
type PopulatedState string

const (
	// PopulatedStateNew means elements are still being determined.
	PopulatedStateNew PopulatedState = "new"
	// PopulatedStateOK means every element has been materialized and
	// every transitively-contained leaf has a determinate dataset state.
	PopulatedStateOK PopulatedState = "ok"
	// PopulatedStateFailed is terminal: a required element could not be
	// produced.
	PopulatedStateFailed PopulatedState = "failed"
)

// IsValid checks if the populated state is valid.
func (s PopulatedState) IsValid() bool {
	switch s {
	case PopulatedStateNew, PopulatedStateOK, PopulatedStateFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the state can no longer change.
func (s PopulatedState) IsTerminal() bool {
	return s == PopulatedStateOK || s == PopulatedStateFailed
}

// String returns the string representation of the populated state.
func (s PopulatedState) String() string {
	return string(s)
}

// DatasetCollection represents a possibly nested grouping of dataset
// instances.
type DatasetCollection struct {
	id               shared.ID
	collectionType   Type
	populatedState   PopulatedState
	populatedMessage string
	elementCount     *int // nil while still populating
	createdAt        time.Time
	updatedAt        time.Time
}

// New creates a new, not-yet-populated collection of the given type.
func New(collectionType Type) (*DatasetCollection, error) {
	if _, err := ParseType(collectionType.String()); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &DatasetCollection{
		id:             shared.NewID(),
		collectionType: collectionType,
		populatedState: PopulatedStateNew,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// Reconstitute recreates a DatasetCollection from persistence.
func Reconstitute(
	id shared.ID,
	collectionType Type,
	populatedState PopulatedState,
	populatedMessage string,
	elementCount *int,
	createdAt, updatedAt time.Time,
) *DatasetCollection {
	return &DatasetCollection{
		id:               id,
		collectionType:   collectionType,
		populatedState:   populatedState,
		populatedMessage: populatedMessage,
		elementCount:     elementCount,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

// ID returns the collection ID.
func (c *DatasetCollection) ID() shared.ID { return c.id }

// CollectionType returns the nesting shape descriptor.
func (c *DatasetCollection) CollectionType() Type { return c.collectionType }

// PopulatedState returns the population state.
func (c *DatasetCollection) PopulatedState() PopulatedState { return c.populatedState }

// PopulatedMessage returns the failure message, if any.
func (c *DatasetCollection) PopulatedMessage() string { return c.populatedMessage }

// ElementCount returns the element count (nil while still populating).
func (c *DatasetCollection) ElementCount() *int { return c.elementCount }

// Populated reports whether the collection reached the OK state.
func (c *DatasetCollection) Populated() bool {
	return c.populatedState == PopulatedStateOK
}

// CreatedAt returns the creation timestamp.
func (c *DatasetCollection) CreatedAt() time.Time { return c.createdAt }

// UpdatedAt returns the last update timestamp.
func (c *DatasetCollection) UpdatedAt() time.Time { return c.updatedAt }

// MarkPopulated transitions NEW -> OK and records the element count.
// Terminal states are immutable; re-marking an OK collection with the
// same count is a no-op so re-aggregation stays idempotent.
func (c *DatasetCollection) MarkPopulated(elementCount int) error {
	if c.populatedState == PopulatedStateOK {
		return nil
	}
	if c.populatedState == PopulatedStateFailed {
		return fmt.Errorf("%w: collection population already failed", shared.ErrConflict)
	}
	c.populatedState = PopulatedStateOK
	c.elementCount = &elementCount
	c.updatedAt = time.Now().UTC()
	return nil
}

// MarkFailed transitions NEW -> FAILED with a message.
func (c *DatasetCollection) MarkFailed(message string) error {
	if c.populatedState == PopulatedStateFailed {
		return nil
	}
	if c.populatedState == PopulatedStateOK {
		return fmt.Errorf("%w: collection is already populated", shared.ErrConflict)
	}
	c.populatedState = PopulatedStateFailed
	c.populatedMessage = message
	c.updatedAt = time.Now().UTC()
	return nil
}

// Element is one slot in a collection: either a leaf dataset-instance
// reference (HDA or LDDA) or a child collection reference, never both.
type Element struct {
	id                shared.ID
	collectionID      shared.ID
	index             int
	identifier        string
	hdaID             *shared.ID
	lddaID            *shared.ID
	childCollectionID *shared.ID
}

// NewHDAElement creates a leaf element referencing a history dataset.
func NewHDAElement(collectionID shared.ID, index int, identifier string, hdaID shared.ID) (*Element, error) {
	if err := validateElement(collectionID, index, identifier); err != nil {
		return nil, err
	}
	if hdaID.IsZero() {
		return nil, &StructureError{Message: "leaf element requires a dataset instance"}
	}
	return &Element{
		id:           shared.NewID(),
		collectionID: collectionID,
		index:        index,
		identifier:   identifier,
		hdaID:        &hdaID,
	}, nil
}

// NewLDDAElement creates a leaf element referencing a library dataset
// version.
func NewLDDAElement(collectionID shared.ID, index int, identifier string, lddaID shared.ID) (*Element, error) {
	if err := validateElement(collectionID, index, identifier); err != nil {
		return nil, err
	}
	if lddaID.IsZero() {
		return nil, &StructureError{Message: "leaf element requires a dataset instance"}
	}
	return &Element{
		id:           shared.NewID(),
		collectionID: collectionID,
		index:        index,
		identifier:   identifier,
		lddaID:       &lddaID,
	}, nil
}

// NewChildElement creates an element referencing a nested collection.
func NewChildElement(collectionID shared.ID, index int, identifier string, childID shared.ID) (*Element, error) {
	if err := validateElement(collectionID, index, identifier); err != nil {
		return nil, err
	}
	if childID.IsZero() {
		return nil, &StructureError{Message: "child element requires a collection"}
	}
	return &Element{
		id:                shared.NewID(),
		collectionID:      collectionID,
		index:             index,
		identifier:        identifier,
		childCollectionID: &childID,
	}, nil
}

func validateElement(collectionID shared.ID, index int, identifier string) error {
	if collectionID.IsZero() {
		return fmt.Errorf("%w: collectionID is required", shared.ErrValidation)
	}
	if index < 0 {
		return &StructureError{Message: fmt.Sprintf("element index must not be negative, got %d", index)}
	}
	if identifier == "" {
		return &StructureError{Message: "element identifier must not be empty"}
	}
	return nil
}

// ReconstituteElement recreates an Element from persistence.
func ReconstituteElement(
	id, collectionID shared.ID,
	index int,
	identifier string,
	hdaID, lddaID, childCollectionID *shared.ID,
) *Element {
	return &Element{
		id:                id,
		collectionID:      collectionID,
		index:             index,
		identifier:        identifier,
		hdaID:             hdaID,
		lddaID:            lddaID,
		childCollectionID: childCollectionID,
	}
}

// ID returns the element ID.
func (e *Element) ID() shared.ID { return e.id }

// CollectionID returns the parent collection ID.
func (e *Element) CollectionID() shared.ID { return e.collectionID }

// Index returns the 0-based position within the parent.
func (e *Element) Index() int { return e.index }

// Identifier returns the user-facing element name.
func (e *Element) Identifier() string { return e.identifier }

// HDAID returns the referenced HDA ID (nil unless an HDA leaf).
func (e *Element) HDAID() *shared.ID { return e.hdaID }

// LDDAID returns the referenced LDDA ID (nil unless an LDDA leaf).
func (e *Element) LDDAID() *shared.ID { return e.lddaID }

// ChildCollectionID returns the nested collection ID (nil for leaves).
func (e *Element) ChildCollectionID() *shared.ID { return e.childCollectionID }

// IsChild reports whether the element references a nested collection.
func (e *Element) IsChild() bool { return e.childCollectionID != nil }

// IsLeaf reports whether the element references a dataset instance.
func (e *Element) IsLeaf() bool { return e.hdaID != nil || e.lddaID != nil }

// DatasetInstance is a leaf a collection element may reference: either a
// history dataset (HDA) or a library dataset version (LDDA).
type DatasetInstance interface {
	InstanceID() shared.ID
	DatasetState() dataset.State
	Extension() string
}
