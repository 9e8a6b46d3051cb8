package library

import (
	"fmt"
	"time"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// TemplateField is one input of a metadata form.
type TemplateField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Optional bool   `json:"optional"`
}

// Template is a reusable metadata form attachable to library items.
type Template struct {
	id          shared.ID
	name        string
	description string
	fields      []TemplateField
	createdAt   time.Time
	updatedAt   time.Time
}

// NewTemplate creates a metadata template.
func NewTemplate(name, description string, fields []TemplateField) (*Template, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: template field name is required", shared.ErrValidation)
		}
	}

	now := time.Now().UTC()
	return &Template{
		id:          shared.NewID(),
		name:        name,
		description: description,
		fields:      fields,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstituteTemplate recreates a Template from persistence.
func ReconstituteTemplate(
	id shared.ID,
	name, description string,
	fields []TemplateField,
	createdAt, updatedAt time.Time,
) *Template {
	return &Template{
		id:          id,
		name:        name,
		description: description,
		fields:      fields,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the template ID.
func (t *Template) ID() shared.ID { return t.id }

// Name returns the template name.
func (t *Template) Name() string { return t.name }

// Description returns the template description.
func (t *Template) Description() string { return t.description }

// Fields returns the form fields.
func (t *Template) Fields() []TemplateField { return t.fields }

// CreatedAt returns the creation timestamp.
func (t *Template) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns the last update timestamp.
func (t *Template) UpdatedAt() time.Time { return t.updatedAt }

// ItemKind identifies which kind of library item an info association is
// attached to.
type ItemKind string

const (
	ItemKindLibrary ItemKind = "library"
	ItemKindFolder  ItemKind = "folder"
	ItemKindLDDA    ItemKind = "ldda"
)

// InfoAssociation attaches a metadata template to a library item. An
// association marked inheritable also applies to descendants that carry
// no association of their own.
type InfoAssociation struct {
	id          shared.ID
	itemKind    ItemKind
	itemID      shared.ID
	templateID  shared.ID
	inheritable bool
	deleted     bool
	createdAt   time.Time
}

// NewInfoAssociation attaches a template to an item.
func NewInfoAssociation(itemKind ItemKind, itemID, templateID shared.ID, inheritable bool) (*InfoAssociation, error) {
	if itemID.IsZero() || templateID.IsZero() {
		return nil, fmt.Errorf("%w: itemID and templateID are required", shared.ErrValidation)
	}
	switch itemKind {
	case ItemKindLibrary, ItemKindFolder, ItemKindLDDA:
	default:
		return nil, fmt.Errorf("%w: invalid item kind %q", shared.ErrValidation, itemKind)
	}

	return &InfoAssociation{
		id:          shared.NewID(),
		itemKind:    itemKind,
		itemID:      itemID,
		templateID:  templateID,
		inheritable: inheritable,
		createdAt:   time.Now().UTC(),
	}, nil
}

// ReconstituteInfoAssociation recreates an InfoAssociation from
// persistence.
func ReconstituteInfoAssociation(
	id shared.ID,
	itemKind ItemKind,
	itemID, templateID shared.ID,
	inheritable, deleted bool,
	createdAt time.Time,
) *InfoAssociation {
	return &InfoAssociation{
		id:          id,
		itemKind:    itemKind,
		itemID:      itemID,
		templateID:  templateID,
		inheritable: inheritable,
		deleted:     deleted,
		createdAt:   createdAt,
	}
}

// ID returns the association ID.
func (ia *InfoAssociation) ID() shared.ID { return ia.id }

// ItemKind returns the attached item's kind.
func (ia *InfoAssociation) ItemKind() ItemKind { return ia.itemKind }

// ItemID returns the attached item's ID.
func (ia *InfoAssociation) ItemID() shared.ID { return ia.itemID }

// TemplateID returns the template ID.
func (ia *InfoAssociation) TemplateID() shared.ID { return ia.templateID }

// IsInheritable reports whether descendants may inherit this template.
func (ia *InfoAssociation) IsInheritable() bool { return ia.inheritable }

// IsDeleted returns the soft-deletion flag.
func (ia *InfoAssociation) IsDeleted() bool { return ia.deleted }

// CreatedAt returns when the association was created.
func (ia *InfoAssociation) CreatedAt() time.Time { return ia.createdAt }

// SetInheritable toggles inheritance to descendants.
func (ia *InfoAssociation) SetInheritable(inheritable bool) {
	ia.inheritable = inheritable
}

// Delete soft-deletes the association.
func (ia *InfoAssociation) Delete() {
	ia.deleted = true
}

// ResolveInfoAssociation walks the item's ancestor chain (the item's own
// association first, then nearest ancestors, ending at the library) and
// returns the nearest live association plus whether it came from an
// ancestor. Ancestor associations count only when inheritable. With
// restrict set, only the item's own association is considered.
//
// chain[0] is the item's own association slot (may be nil); subsequent
// entries are ancestor slots ordered nearest-first.
func ResolveInfoAssociation(chain []*InfoAssociation, restrict bool) (*InfoAssociation, bool) {
	for i, ia := range chain {
		if ia == nil || ia.deleted {
			if restrict {
				return nil, false
			}
			continue
		}
		if i == 0 {
			return ia, false
		}
		if restrict {
			return nil, false
		}
		if ia.inheritable {
			return ia, true
		}
	}
	return nil, false
}
