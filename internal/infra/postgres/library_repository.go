package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/domain/library"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
)

const libraryColumns = `id, name, description, synopsis, root_folder_id, deleted, purged, created_at, updated_at`

const folderColumns = `id, library_id, parent_id, name, description, genome_build, item_count, order_id, deleted, purged, created_at, updated_at`

const libraryDatasetColumns = `id, folder_id, current_version_id, name_override, info_override, order_id, deleted, purged, created_at, updated_at`

// lddaColumns joins the underlying dataset so the state comes back
// denormalized in one read.
const lddaColumns = `l.id, l.library_dataset_id, l.dataset_id, l.user_id, l.parent_id, l.copied_from_hda_id, l.copied_from_ldda_id,
	l.name, l.info, l.blurb, l.peek, l.extension, l.designation, l.message, l.metadata, d.state, l.deleted, l.created_at, l.updated_at`

// LibraryRepository implements library.Repository using PostgreSQL. It
// also implements security.Hierarchy: the parent walk used by inherited
// permission checks resolves through the same tables.
type LibraryRepository struct {
	db *DB
}

// NewLibraryRepository creates a new LibraryRepository.
func NewLibraryRepository(db *DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// CreateLibrary persists a library and its root folder atomically. The
// folder row goes first since the library references it.
func (r *LibraryRepository) CreateLibrary(ctx context.Context, l *library.Library, root *library.Folder) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := insertFolder(ctx, tx, root); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO libraries (id, name, description, synopsis, root_folder_id, deleted, purged, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			l.ID().String(),
			l.Name(),
			l.Description(),
			l.Synopsis(),
			l.RootFolderID().String(),
			l.IsDeleted(),
			l.IsPurged(),
			l.CreatedAt(),
			l.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to create library: %w", err)
		}
		return nil
	})
}

// GetLibrary retrieves a library by ID.
func (r *LibraryRepository) GetLibrary(ctx context.Context, id shared.ID) (*library.Library, error) {
	query := fmt.Sprintf(`SELECT %s FROM libraries WHERE id = $1`, libraryColumns)

	l, err := r.scanLibrary(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, library.ErrLibraryNotFound
		}
		return nil, err
	}
	return l, nil
}

// GetLibraryByFolder retrieves the library owning a folder.
func (r *LibraryRepository) GetLibraryByFolder(ctx context.Context, folderID shared.ID) (*library.Library, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM libraries l
		JOIN library_folders f ON f.library_id = l.id
		WHERE f.id = $1
	`, prefixedColumns("l", libraryColumns))

	l, err := r.scanLibrary(r.db.QueryRowContext(ctx, query, folderID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, library.ErrLibraryNotFound
		}
		return nil, err
	}
	return l, nil
}

// UpdateLibrary persists changes to an existing library.
func (r *LibraryRepository) UpdateLibrary(ctx context.Context, l *library.Library) error {
	query := `
		UPDATE libraries
		SET name = $2, description = $3, synopsis = $4, deleted = $5, purged = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		l.ID().String(),
		l.Name(),
		l.Description(),
		l.Synopsis(),
		l.IsDeleted(),
		l.IsPurged(),
		l.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update library: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return library.ErrLibraryNotFound
	}
	return nil
}

// ListLibraries retrieves libraries matching the filter.
func (r *LibraryRepository) ListLibraries(ctx context.Context, filter library.ListFilter) ([]*library.Library, error) {
	query := fmt.Sprintf(`SELECT %s FROM libraries WHERE 1=1`, libraryColumns)
	args := []any{}

	if !filter.IncludeDeleted {
		query += ` AND deleted = FALSE`
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(` AND name ILIKE $%d`, len(args))
	}

	query += ` ORDER BY name`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list libraries: %w", err)
	}
	defer rows.Close()

	var libraries []*library.Library
	for rows.Next() {
		l, err := r.scanLibrary(rows)
		if err != nil {
			return nil, err
		}
		libraries = append(libraries, l)
	}
	return libraries, rows.Err()
}

// CreateFolder persists a new folder.
func (r *LibraryRepository) CreateFolder(ctx context.Context, f *library.Folder) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		return insertFolder(ctx, tx, f)
	})
}

func insertFolder(ctx context.Context, tx *sql.Tx, f *library.Folder) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO library_folders (id, library_id, parent_id, name, description, genome_build, item_count, order_id, deleted, purged, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		f.ID().String(),
		f.LibraryID().String(),
		nullID(f.ParentID()),
		f.Name(),
		f.Description(),
		f.GenomeBuild(),
		f.ItemCount(),
		f.OrderID(),
		f.IsDeleted(),
		false,
		f.CreatedAt(),
		f.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create library folder: %w", err)
	}
	return nil
}

// GetFolder retrieves a folder by ID.
func (r *LibraryRepository) GetFolder(ctx context.Context, id shared.ID) (*library.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM library_folders WHERE id = $1`, folderColumns)

	f, err := r.scanFolder(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, library.ErrFolderNotFound
		}
		return nil, err
	}
	return f, nil
}

// UpdateFolder persists changes to an existing folder.
func (r *LibraryRepository) UpdateFolder(ctx context.Context, f *library.Folder) error {
	query := `
		UPDATE library_folders
		SET name = $2, description = $3, genome_build = $4, item_count = $5,
		    order_id = $6, deleted = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		f.ID().String(),
		f.Name(),
		f.Description(),
		f.GenomeBuild(),
		f.ItemCount(),
		f.OrderID(),
		f.IsDeleted(),
		f.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update library folder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return library.ErrFolderNotFound
	}
	return nil
}

// ListChildFolders retrieves the direct child folders of a parent.
func (r *LibraryRepository) ListChildFolders(ctx context.Context, parentID shared.ID) ([]*library.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM library_folders WHERE parent_id = $1 ORDER BY order_id, name`, folderColumns)

	rows, err := r.db.QueryContext(ctx, query, parentID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list child folders: %w", err)
	}
	defer rows.Close()

	var folders []*library.Folder
	for rows.Next() {
		f, err := r.scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// FolderChain returns the folder and its ancestors ordered from the
// folder itself up to the root, resolved with one recursive query.
func (r *LibraryRepository) FolderChain(ctx context.Context, folderID shared.ID) ([]*library.Folder, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE chain AS (
			SELECT %s, 0 AS depth FROM library_folders WHERE id = $1
			UNION ALL
			SELECT %s, chain.depth + 1
			FROM library_folders f
			JOIN chain ON f.id = chain.parent_id
		)
		SELECT %s FROM chain ORDER BY depth
	`, folderColumns, prefixedColumns("f", folderColumns), folderColumns)

	rows, err := r.db.QueryContext(ctx, query, folderID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve folder chain: %w", err)
	}
	defer rows.Close()

	var folders []*library.Folder
	for rows.Next() {
		f, err := r.scanFolderWithDepth(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return nil, library.ErrFolderNotFound
	}
	return folders, nil
}

// CreateLibraryDataset persists a new library dataset slot.
func (r *LibraryRepository) CreateLibraryDataset(ctx context.Context, ld *library.LibraryDataset) error {
	query := `
		INSERT INTO library_datasets (id, folder_id, current_version_id, name_override, info_override, order_id, deleted, purged, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		ld.ID().String(),
		ld.FolderID().String(),
		nullID(ld.CurrentVersionID()),
		ld.DisplayName(nil),
		ld.DisplayInfo(nil),
		ld.OrderID(),
		ld.IsDeleted(),
		false,
		ld.CreatedAt(),
		ld.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create library dataset: %w", err)
	}
	return nil
}

// GetLibraryDataset retrieves a library dataset slot by ID.
func (r *LibraryRepository) GetLibraryDataset(ctx context.Context, id shared.ID) (*library.LibraryDataset, error) {
	query := fmt.Sprintf(`SELECT %s FROM library_datasets WHERE id = $1`, libraryDatasetColumns)

	ld, err := r.scanLibraryDataset(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, library.ErrLibraryDatasetNotFound
		}
		return nil, err
	}
	return ld, nil
}

// UpdateLibraryDataset persists changes to an existing slot.
func (r *LibraryRepository) UpdateLibraryDataset(ctx context.Context, ld *library.LibraryDataset) error {
	query := `
		UPDATE library_datasets
		SET current_version_id = $2, name_override = $3, info_override = $4,
		    order_id = $5, deleted = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		ld.ID().String(),
		nullID(ld.CurrentVersionID()),
		ld.DisplayName(nil),
		ld.DisplayInfo(nil),
		ld.OrderID(),
		ld.IsDeleted(),
		ld.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update library dataset: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return library.ErrLibraryDatasetNotFound
	}
	return nil
}

// ListLibraryDatasets retrieves the slots in a folder.
func (r *LibraryRepository) ListLibraryDatasets(ctx context.Context, folderID shared.ID) ([]*library.LibraryDataset, error) {
	query := fmt.Sprintf(`SELECT %s FROM library_datasets WHERE folder_id = $1 ORDER BY order_id`, libraryDatasetColumns)

	rows, err := r.db.QueryContext(ctx, query, folderID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list library datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*library.LibraryDataset
	for rows.Next() {
		ld, err := r.scanLibraryDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ld)
	}
	return datasets, rows.Err()
}

// CreateLDDA persists a new library dataset version.
func (r *LibraryRepository) CreateLDDA(ctx context.Context, l *library.LibraryDatasetDatasetAssociation) error {
	metadata, err := toJSONB(l.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO library_dataset_dataset_associations (
			id, library_dataset_id, dataset_id, user_id, parent_id, copied_from_hda_id, copied_from_ldda_id,
			name, info, blurb, peek, extension, designation, message, metadata, deleted, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err = r.db.ExecContext(ctx, query,
		l.ID().String(),
		l.LibraryDatasetID().String(),
		l.DatasetID().String(),
		l.UserID().String(),
		nullID(l.ParentID()),
		nullID(l.CopiedFromHDAID()),
		nullID(l.CopiedFromLDDAID()),
		l.Name(),
		l.Info(),
		l.Blurb(),
		l.Peek(),
		l.Extension(),
		l.Designation(),
		l.Message(),
		metadata,
		l.IsDeleted(),
		l.CreatedAt(),
		l.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create library dataset version: %w", err)
	}
	return nil
}

// GetLDDA retrieves a library dataset version by ID.
func (r *LibraryRepository) GetLDDA(ctx context.Context, id shared.ID) (*library.LibraryDatasetDatasetAssociation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM library_dataset_dataset_associations l
		JOIN datasets d ON d.id = l.dataset_id
		WHERE l.id = $1
	`, lddaColumns)

	l, err := r.scanLDDA(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, library.ErrLDDANotFound
		}
		return nil, err
	}
	return l, nil
}

// UpdateLDDA persists changes to an existing version.
func (r *LibraryRepository) UpdateLDDA(ctx context.Context, l *library.LibraryDatasetDatasetAssociation) error {
	metadata, err := toJSONB(l.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE library_dataset_dataset_associations
		SET name = $2, info = $3, blurb = $4, peek = $5, designation = $6,
		    message = $7, metadata = $8, deleted = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		l.ID().String(),
		l.Name(),
		l.Info(),
		l.Blurb(),
		l.Peek(),
		l.Designation(),
		l.Message(),
		metadata,
		l.IsDeleted(),
		l.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update library dataset version: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return library.ErrLDDANotFound
	}
	return nil
}

// ListVersions retrieves all versions of a library dataset slot, newest
// first.
func (r *LibraryRepository) ListVersions(ctx context.Context, libraryDatasetID shared.ID) ([]*library.LibraryDatasetDatasetAssociation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM library_dataset_dataset_associations l
		JOIN datasets d ON d.id = l.dataset_id
		WHERE l.library_dataset_id = $1
		ORDER BY l.created_at DESC
	`, lddaColumns)

	rows, err := r.db.QueryContext(ctx, query, libraryDatasetID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list library dataset versions: %w", err)
	}
	defer rows.Close()

	var versions []*library.LibraryDatasetDatasetAssociation
	for rows.Next() {
		l, err := r.scanLDDA(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, l)
	}
	return versions, rows.Err()
}

// CreateTemplate persists a new metadata template.
func (r *LibraryRepository) CreateTemplate(ctx context.Context, t *library.Template) error {
	fields, err := json.Marshal(t.Fields())
	if err != nil {
		return fmt.Errorf("failed to marshal template fields: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO library_info_templates (id, name, description, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		t.ID().String(),
		t.Name(),
		t.Description(),
		fields,
		t.CreatedAt(),
		t.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// GetTemplate retrieves a metadata template by ID.
func (r *LibraryRepository) GetTemplate(ctx context.Context, id shared.ID) (*library.Template, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, fields, created_at, updated_at
		FROM library_info_templates
		WHERE id = $1
	`, id.String())

	t, err := r.scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, library.ErrTemplateNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListTemplates retrieves all metadata templates.
func (r *LibraryRepository) ListTemplates(ctx context.Context) ([]*library.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, fields, created_at, updated_at
		FROM library_info_templates
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*library.Template
	for rows.Next() {
		t, err := r.scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *LibraryRepository) scanTemplate(s scanner) (*library.Template, error) {
	var (
		idStr, name, description string
		fieldsBytes              []byte
		createdAt, updatedAt     time.Time
	)

	err := s.Scan(&idStr, &name, &description, &fieldsBytes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template id: %w", err)
	}

	var fields []library.TemplateField
	if err := json.Unmarshal(fieldsBytes, &fields); err != nil {
		return nil, fmt.Errorf("invalid template fields: %w", err)
	}

	return library.ReconstituteTemplate(id, name, description, fields, createdAt, updatedAt), nil
}

// SaveInfoAssociation upserts a template association for an item.
func (r *LibraryRepository) SaveInfoAssociation(ctx context.Context, ia *library.InfoAssociation) error {
	query := `
		INSERT INTO library_info_associations (id, item_kind, item_id, template_id, inheritable, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET template_id = EXCLUDED.template_id,
		    inheritable = EXCLUDED.inheritable,
		    deleted = EXCLUDED.deleted
	`

	_, err := r.db.ExecContext(ctx, query,
		ia.ID().String(),
		string(ia.ItemKind()),
		ia.ItemID().String(),
		ia.TemplateID().String(),
		ia.IsInheritable(),
		ia.IsDeleted(),
		ia.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to save info association: %w", err)
	}
	return nil
}

// GetInfoAssociation retrieves an item's own template association.
// Returns (nil, nil) when the item has none.
func (r *LibraryRepository) GetInfoAssociation(ctx context.Context, itemKind library.ItemKind, itemID shared.ID) (*library.InfoAssociation, error) {
	query := `
		SELECT id, item_kind, item_id, template_id, inheritable, deleted, created_at
		FROM library_info_associations
		WHERE item_kind = $1 AND item_id = $2 AND deleted = FALSE
	`

	row := r.db.QueryRowContext(ctx, query, string(itemKind), itemID.String())

	var (
		idStr, kind, itemIDStr, templateIDStr string
		inheritable, deleted                  bool
		createdAt                             time.Time
	)
	err := row.Scan(&idStr, &kind, &itemIDStr, &templateIDStr, &inheritable, &deleted, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get info association: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid info association id: %w", err)
	}
	parsedItemID, err := shared.IDFromString(itemIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid item id: %w", err)
	}
	templateID, err := shared.IDFromString(templateIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template id: %w", err)
	}

	return library.ReconstituteInfoAssociation(id, library.ItemKind(kind), parsedItemID, templateID,
		inheritable, deleted, createdAt), nil
}

// Parent implements security.Hierarchy. A version's parent is its slot,
// a slot's parent is its folder, a folder's parent is the next folder up
// or the library itself at the root. Libraries have no parent.
func (r *LibraryRepository) Parent(ctx context.Context, item security.ItemRef) (security.ItemRef, bool, error) {
	switch item.Kind {
	case security.KindLDDA:
		var ldID string
		err := r.db.QueryRowContext(ctx,
			`SELECT library_dataset_id FROM library_dataset_dataset_associations WHERE id = $1`,
			item.ID.String()).Scan(&ldID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return security.ItemRef{}, false, library.ErrLDDANotFound
			}
			return security.ItemRef{}, false, err
		}
		id, err := shared.IDFromString(ldID)
		if err != nil {
			return security.ItemRef{}, false, err
		}
		return security.LibraryDatasetRef(id), true, nil

	case security.KindLibraryDataset:
		var folderID string
		err := r.db.QueryRowContext(ctx,
			`SELECT folder_id FROM library_datasets WHERE id = $1`,
			item.ID.String()).Scan(&folderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return security.ItemRef{}, false, library.ErrLibraryDatasetNotFound
			}
			return security.ItemRef{}, false, err
		}
		id, err := shared.IDFromString(folderID)
		if err != nil {
			return security.ItemRef{}, false, err
		}
		return security.FolderRef(id), true, nil

	case security.KindFolder:
		var parentID sql.NullString
		var libraryID string
		err := r.db.QueryRowContext(ctx,
			`SELECT parent_id, library_id FROM library_folders WHERE id = $1`,
			item.ID.String()).Scan(&parentID, &libraryID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return security.ItemRef{}, false, library.ErrFolderNotFound
			}
			return security.ItemRef{}, false, err
		}
		if parentID.Valid {
			id, err := shared.IDFromString(parentID.String)
			if err != nil {
				return security.ItemRef{}, false, err
			}
			return security.FolderRef(id), true, nil
		}
		id, err := shared.IDFromString(libraryID)
		if err != nil {
			return security.ItemRef{}, false, err
		}
		return security.LibraryRef(id), true, nil

	default:
		return security.ItemRef{}, false, nil
	}
}

// prefixedColumns qualifies a comma-separated column list with a table
// alias for use in joins.
func prefixedColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func (r *LibraryRepository) scanLibrary(s scanner) (*library.Library, error) {
	var (
		idStr, name, description, synopsis, rootFolderIDStr string
		deleted, purged                                     bool
		createdAt, updatedAt                                time.Time
	)

	err := s.Scan(&idStr, &name, &description, &synopsis, &rootFolderIDStr,
		&deleted, &purged, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid library id: %w", err)
	}
	rootFolderID, err := shared.IDFromString(rootFolderIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid root folder id: %w", err)
	}

	return library.ReconstituteLibrary(id, name, description, synopsis, rootFolderID,
		deleted, purged, createdAt, updatedAt), nil
}

func (r *LibraryRepository) scanFolder(s scanner) (*library.Folder, error) {
	var (
		idStr, libraryIDStr                string
		parentID                           sql.NullString
		name, description, genomeBuild     string
		itemCount, orderID                 int
		deleted, purged                    bool
		createdAt, updatedAt               time.Time
	)

	err := s.Scan(&idStr, &libraryIDStr, &parentID, &name, &description, &genomeBuild,
		&itemCount, &orderID, &deleted, &purged, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	return r.buildFolder(idStr, libraryIDStr, parentID, name, description, genomeBuild,
		itemCount, orderID, deleted, purged, createdAt, updatedAt)
}

func (r *LibraryRepository) scanFolderWithDepth(s scanner) (*library.Folder, error) {
	var (
		idStr, libraryIDStr            string
		parentID                       sql.NullString
		name, description, genomeBuild string
		itemCount, orderID, depth      int
		deleted, purged                bool
		createdAt, updatedAt           time.Time
	)

	err := s.Scan(&idStr, &libraryIDStr, &parentID, &name, &description, &genomeBuild,
		&itemCount, &orderID, &deleted, &purged, &createdAt, &updatedAt, &depth)
	if err != nil {
		return nil, err
	}

	return r.buildFolder(idStr, libraryIDStr, parentID, name, description, genomeBuild,
		itemCount, orderID, deleted, purged, createdAt, updatedAt)
}

func (r *LibraryRepository) buildFolder(
	idStr, libraryIDStr string,
	parentID sql.NullString,
	name, description, genomeBuild string,
	itemCount, orderID int,
	deleted, purged bool,
	createdAt, updatedAt time.Time,
) (*library.Folder, error) {
	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid folder id: %w", err)
	}
	libraryID, err := shared.IDFromString(libraryIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid library id: %w", err)
	}

	return library.ReconstituteFolder(id, libraryID, parseNullID(parentID),
		name, description, genomeBuild, itemCount, orderID,
		deleted, purged, createdAt, updatedAt), nil
}

func (r *LibraryRepository) scanLibraryDataset(s scanner) (*library.LibraryDataset, error) {
	var (
		idStr, folderIDStr         string
		currentVersionID           sql.NullString
		nameOverride, infoOverride string
		orderID                    int
		deleted, purged            bool
		createdAt, updatedAt       time.Time
	)

	err := s.Scan(&idStr, &folderIDStr, &currentVersionID, &nameOverride, &infoOverride,
		&orderID, &deleted, &purged, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid library dataset id: %w", err)
	}
	folderID, err := shared.IDFromString(folderIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid folder id: %w", err)
	}

	return library.ReconstituteLibraryDataset(id, folderID, parseNullID(currentVersionID),
		nameOverride, infoOverride, orderID, deleted, purged, createdAt, updatedAt), nil
}

func (r *LibraryRepository) scanLDDA(s scanner) (*library.LibraryDatasetDatasetAssociation, error) {
	var (
		idStr, libraryDatasetIDStr, datasetIDStr, userIDStr    string
		parentID, copiedFromHDAID, copiedFromLDDAID            sql.NullString
		name, info, blurb, peek, extension, designation, msg   string
		metadataBytes                                          []byte
		state                                                  string
		deleted                                                bool
		createdAt, updatedAt                                   time.Time
	)

	err := s.Scan(&idStr, &libraryDatasetIDStr, &datasetIDStr, &userIDStr,
		&parentID, &copiedFromHDAID, &copiedFromLDDAID,
		&name, &info, &blurb, &peek, &extension, &designation, &msg,
		&metadataBytes, &state, &deleted, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid version id: %w", err)
	}
	libraryDatasetID, err := shared.IDFromString(libraryDatasetIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid library dataset id: %w", err)
	}
	datasetID, err := shared.IDFromString(datasetIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset id: %w", err)
	}
	userID, err := shared.IDFromString(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	metadata, err := fromJSONB(metadataBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}

	return library.ReconstituteLDDA(id, libraryDatasetID, datasetID, userID,
		parseNullID(parentID), parseNullID(copiedFromHDAID), parseNullID(copiedFromLDDAID),
		name, info, blurb, peek, extension, designation, msg,
		metadata, dataset.State(state), deleted, createdAt, updatedAt), nil
}
