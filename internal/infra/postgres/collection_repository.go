package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bioarchive/api/pkg/domain/collection"
	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/domain/library"
	"github.com/bioarchive/api/pkg/domain/shared"
)

const collectionColumns = `id, collection_type, populated_state, populated_state_message, element_count, created_at, updated_at`

// querier abstracts *DB and *sql.Tx so tree loads can run inside a
// locking transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CollectionRepository implements collection.Repository using PostgreSQL.
type CollectionRepository struct {
	db *DB
}

// NewCollectionRepository creates a new CollectionRepository.
func NewCollectionRepository(db *DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// CreateTree persists a collection and its elements recursively in one
// transaction. Child collections are inserted before the element rows
// that reference them.
func (r *CollectionRepository) CreateTree(ctx context.Context, t *collection.Tree) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		return insertTree(ctx, tx, t)
	})
}

func insertTree(ctx context.Context, tx *sql.Tx, t *collection.Tree) error {
	if err := insertCollection(ctx, tx, t.Collection); err != nil {
		return err
	}

	for _, n := range t.Elements {
		if n.Child != nil {
			if err := insertTree(ctx, tx, n.Child); err != nil {
				return err
			}
		}

		el := n.Element
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dataset_collection_elements (id, collection_id, element_index, element_identifier, hda_id, ldda_id, child_collection_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			el.ID().String(),
			el.CollectionID().String(),
			el.Index(),
			el.Identifier(),
			nullID(el.HDAID()),
			nullID(el.LDDAID()),
			nullID(el.ChildCollectionID()),
		)
		if err != nil {
			return fmt.Errorf("failed to create collection element: %w", err)
		}
	}
	return nil
}

func insertCollection(ctx context.Context, q querier, c *collection.DatasetCollection) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO dataset_collections (id, collection_type, populated_state, populated_state_message, element_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		c.ID().String(),
		c.CollectionType().String(),
		c.PopulatedState().String(),
		c.PopulatedMessage(),
		nullInt(c.ElementCount()),
		c.CreatedAt(),
		c.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Get retrieves a collection by ID without its elements.
func (r *CollectionRepository) Get(ctx context.Context, id shared.ID) (*collection.DatasetCollection, error) {
	return getCollection(ctx, r.db, id)
}

func getCollection(ctx context.Context, q querier, id shared.ID) (*collection.DatasetCollection, error) {
	query := fmt.Sprintf(`SELECT %s FROM dataset_collections WHERE id = $1`, collectionColumns)

	c, err := scanCollection(q.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, collection.ErrCollectionNotFound
		}
		return nil, err
	}
	return c, nil
}

// GetTree loads the full nested structure. The subtree's collection IDs
// are resolved with one recursive query; collections, elements and leaf
// instances are then fetched in bulk and assembled in memory.
func (r *CollectionRepository) GetTree(ctx context.Context, id shared.ID) (*collection.Tree, error) {
	return loadTree(ctx, r.db, id)
}

func loadTree(ctx context.Context, q querier, rootID shared.ID) (*collection.Tree, error) {
	collections, err := loadSubtreeCollections(ctx, q, rootID)
	if err != nil {
		return nil, err
	}
	if _, ok := collections[rootID]; !ok {
		return nil, collection.ErrCollectionNotFound
	}

	elements, err := loadSubtreeElements(ctx, q, rootID)
	if err != nil {
		return nil, err
	}

	return assembleTree(rootID, collections, elements)
}

// loadSubtreeCollections fetches every collection reachable from the
// root through child elements.
func loadSubtreeCollections(ctx context.Context, q querier, rootID shared.ID) (map[shared.ID]*collection.DatasetCollection, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree(id) AS (
			SELECT $1::uuid
			UNION
			SELECT e.child_collection_id
			FROM dataset_collection_elements e
			JOIN subtree s ON e.collection_id = s.id
			WHERE e.child_collection_id IS NOT NULL
		)
		SELECT %s FROM dataset_collections c
		JOIN subtree s ON s.id = c.id
	`, prefixedColumns("c", collectionColumns))

	rows, err := q.QueryContext(ctx, query, rootID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load collection subtree: %w", err)
	}
	defer rows.Close()

	out := make(map[shared.ID]*collection.DatasetCollection)
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out[c.ID()] = c
	}
	return out, rows.Err()
}

// elementRow is one element with its optional leaf instance fields.
type elementRow struct {
	element *collection.Element
	hda     *dataset.HistoryDatasetAssociation
	ldda    *library.LibraryDatasetDatasetAssociation
}

// loadSubtreeElements fetches all element rows of the subtree, with HDA
// and LDDA leaves joined in so no per-leaf queries are needed.
func loadSubtreeElements(ctx context.Context, q querier, rootID shared.ID) (map[shared.ID][]elementRow, error) {
	query := `
		WITH RECURSIVE subtree(id) AS (
			SELECT $1::uuid
			UNION
			SELECT e.child_collection_id
			FROM dataset_collection_elements e
			JOIN subtree s ON e.collection_id = s.id
			WHERE e.child_collection_id IS NOT NULL
		)
		SELECT
			e.id, e.collection_id, e.element_index, e.element_identifier,
			e.hda_id, e.ldda_id, e.child_collection_id,
			h.history_id, h.dataset_id, h.name, h.info, h.blurb, h.extension, h.hid,
			h.visible, h.deleted, hd.state, h.created_at, h.updated_at,
			l.library_dataset_id, l.dataset_id, l.user_id, l.parent_id,
			l.copied_from_hda_id, l.copied_from_ldda_id,
			l.name, l.info, l.blurb, l.peek, l.extension, l.designation, l.message,
			l.metadata, ld.state, l.deleted, l.created_at, l.updated_at
		FROM dataset_collection_elements e
		JOIN subtree s ON s.id = e.collection_id
		LEFT JOIN history_dataset_associations h ON h.id = e.hda_id
		LEFT JOIN datasets hd ON hd.id = h.dataset_id
		LEFT JOIN library_dataset_dataset_associations l ON l.id = e.ldda_id
		LEFT JOIN datasets ld ON ld.id = l.dataset_id
		ORDER BY e.collection_id, e.element_index
	`

	rows, err := q.QueryContext(ctx, query, rootID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load collection elements: %w", err)
	}
	defer rows.Close()

	out := make(map[shared.ID][]elementRow)
	for rows.Next() {
		row, err := scanElementRow(rows)
		if err != nil {
			return nil, err
		}
		cid := row.element.CollectionID()
		out[cid] = append(out[cid], row)
	}
	return out, rows.Err()
}

func scanElementRow(s scanner) (elementRow, error) {
	var (
		idStr, collectionIDStr string
		index                  int
		identifier             string
		hdaID, lddaID, childID sql.NullString

		hHistoryID, hDatasetID                  sql.NullString
		hName, hInfo, hBlurb, hExtension        sql.NullString
		hHID                                    sql.NullInt64
		hVisible, hDeleted                      sql.NullBool
		hState                                  sql.NullString
		hCreatedAt, hUpdatedAt                  sql.NullTime

		lLibraryDatasetID, lDatasetID, lUserID  sql.NullString
		lParentID, lCopiedHDAID, lCopiedLDDAID  sql.NullString
		lName, lInfo, lBlurb, lPeek, lExtension sql.NullString
		lDesignation, lMessage                  sql.NullString
		lMetadata                               []byte
		lState                                  sql.NullString
		lDeleted                                sql.NullBool
		lCreatedAt, lUpdatedAt                  sql.NullTime
	)

	err := s.Scan(&idStr, &collectionIDStr, &index, &identifier, &hdaID, &lddaID, &childID,
		&hHistoryID, &hDatasetID, &hName, &hInfo, &hBlurb, &hExtension, &hHID,
		&hVisible, &hDeleted, &hState, &hCreatedAt, &hUpdatedAt,
		&lLibraryDatasetID, &lDatasetID, &lUserID, &lParentID, &lCopiedHDAID, &lCopiedLDDAID,
		&lName, &lInfo, &lBlurb, &lPeek, &lExtension, &lDesignation, &lMessage,
		&lMetadata, &lState, &lDeleted, &lCreatedAt, &lUpdatedAt)
	if err != nil {
		return elementRow{}, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return elementRow{}, fmt.Errorf("invalid element id: %w", err)
	}
	collectionID, err := shared.IDFromString(collectionIDStr)
	if err != nil {
		return elementRow{}, fmt.Errorf("invalid collection id: %w", err)
	}

	row := elementRow{
		element: collection.ReconstituteElement(id, collectionID, index, identifier,
			parseNullID(hdaID), parseNullID(lddaID), parseNullID(childID)),
	}

	if hdaID.Valid && hHistoryID.Valid {
		historyID := parseNullID(hHistoryID)
		datasetID := parseNullID(hDatasetID)
		hdaIDParsed := parseNullID(hdaID)
		if historyID == nil || datasetID == nil || hdaIDParsed == nil {
			return elementRow{}, fmt.Errorf("invalid hda reference on element %s", idStr)
		}
		row.hda = dataset.ReconstituteHDA(*hdaIDParsed, *historyID, *datasetID,
			hName.String, hInfo.String, hBlurb.String, hExtension.String,
			int(hHID.Int64), hVisible.Bool, hDeleted.Bool,
			dataset.State(hState.String), hCreatedAt.Time, hUpdatedAt.Time)
	}

	if lddaID.Valid && lLibraryDatasetID.Valid {
		lddaIDParsed := parseNullID(lddaID)
		libraryDatasetID := parseNullID(lLibraryDatasetID)
		datasetID := parseNullID(lDatasetID)
		userID := parseNullID(lUserID)
		if lddaIDParsed == nil || libraryDatasetID == nil || datasetID == nil || userID == nil {
			return elementRow{}, fmt.Errorf("invalid ldda reference on element %s", idStr)
		}
		metadata, err := fromJSONB(lMetadata)
		if err != nil {
			return elementRow{}, fmt.Errorf("invalid ldda metadata: %w", err)
		}
		row.ldda = library.ReconstituteLDDA(*lddaIDParsed, *libraryDatasetID, *datasetID, *userID,
			parseNullID(lParentID), parseNullID(lCopiedHDAID), parseNullID(lCopiedLDDAID),
			lName.String, lInfo.String, lBlurb.String, lPeek.String, lExtension.String,
			lDesignation.String, lMessage.String, metadata,
			dataset.State(lState.String), lDeleted.Bool, lCreatedAt.Time, lUpdatedAt.Time)
	}

	return row, nil
}

// assembleTree builds the validated tree bottom-up from the flat maps.
func assembleTree(
	rootID shared.ID,
	collections map[shared.ID]*collection.DatasetCollection,
	elements map[shared.ID][]elementRow,
) (*collection.Tree, error) {
	root, ok := collections[rootID]
	if !ok {
		return nil, collection.ErrCollectionNotFound
	}

	nodes := make([]*collection.Node, 0, len(elements[rootID]))
	for _, row := range elements[rootID] {
		node := &collection.Node{Element: row.element}
		switch {
		case row.element.ChildCollectionID() != nil:
			child, err := assembleTree(*row.element.ChildCollectionID(), collections, elements)
			if err != nil {
				return nil, err
			}
			node.Child = child
		case row.hda != nil:
			node.Leaf = row.hda
		case row.ldda != nil:
			node.Leaf = row.ldda
		}
		nodes = append(nodes, node)
	}

	return collection.NewTree(root, nodes)
}

// Update persists changes to a collection's own row.
func (r *CollectionRepository) Update(ctx context.Context, c *collection.DatasetCollection) error {
	return updateCollection(ctx, r.db, c)
}

func updateCollection(ctx context.Context, q querier, c *collection.DatasetCollection) error {
	query := `
		UPDATE dataset_collections
		SET populated_state = $2, populated_state_message = $3, element_count = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := q.ExecContext(ctx, query,
		c.ID().String(),
		c.PopulatedState().String(),
		c.PopulatedMessage(),
		nullInt(c.ElementCount()),
		c.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return collection.ErrCollectionNotFound
	}
	return nil
}

// ListParentCollectionIDs returns the IDs of collections that directly
// or transitively contain the given dataset, outermost last.
func (r *CollectionRepository) ListParentCollectionIDs(ctx context.Context, datasetID shared.ID) ([]shared.ID, error) {
	query := `
		WITH RECURSIVE containing(id, depth) AS (
			SELECT e.collection_id, 0
			FROM dataset_collection_elements e
			LEFT JOIN history_dataset_associations h ON h.id = e.hda_id
			LEFT JOIN library_dataset_dataset_associations l ON l.id = e.ldda_id
			WHERE h.dataset_id = $1 OR l.dataset_id = $1
			UNION ALL
			SELECT e.collection_id, c.depth + 1
			FROM dataset_collection_elements e
			JOIN containing c ON e.child_collection_id = c.id
		)
		SELECT id FROM containing
		GROUP BY id
		ORDER BY MIN(depth)
	`

	rows, err := r.db.QueryContext(ctx, query, datasetID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list containing collections: %w", err)
	}
	defer rows.Close()

	var ids []shared.ID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		id, err := shared.IDFromString(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid collection id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RefreshPopulatedState recomputes and persists the collection's
// populated state from current descendant states while holding a row
// lock on the collection. The aggregate is derived entirely from the
// tree, so redundant concurrent calls converge on the same result.
func (r *CollectionRepository) RefreshPopulatedState(ctx context.Context, id shared.ID) (collection.PopulatedState, error) {
	var state collection.PopulatedState

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		var locked string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM dataset_collections WHERE id = $1 FOR UPDATE`,
			id.String()).Scan(&locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return collection.ErrCollectionNotFound
			}
			return err
		}

		tree, err := loadTree(ctx, tx, id)
		if err != nil {
			return err
		}

		c := tree.Collection
		switch tree.AggregatePopulatedState() {
		case collection.PopulatedStateOK:
			if err := c.MarkPopulated(len(tree.Elements)); err != nil {
				return err
			}
		case collection.PopulatedStateFailed:
			if c.PopulatedState() != collection.PopulatedStateFailed {
				if err := c.MarkFailed("population of a contained collection failed"); err != nil {
					return err
				}
			}
		}

		if err := updateCollection(ctx, tx, c); err != nil {
			return err
		}
		state = c.PopulatedState()
		return nil
	})
	if err != nil {
		return "", err
	}
	return state, nil
}

func scanCollection(s scanner) (*collection.DatasetCollection, error) {
	var (
		idStr, collectionType, populatedState string
		populatedMessage                      string
		elementCount                          sql.NullInt64
		createdAt, updatedAt                  time.Time
	)

	err := s.Scan(&idStr, &collectionType, &populatedState, &populatedMessage,
		&elementCount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid collection id: %w", err)
	}

	return collection.Reconstitute(id, collection.Type(collectionType),
		collection.PopulatedState(populatedState), populatedMessage,
		nullIntValue(elementCount), createdAt, updatedAt), nil
}
