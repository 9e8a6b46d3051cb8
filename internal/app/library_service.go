package app

import (
	"context"
	"fmt"

	"github.com/bioarchive/api/pkg/domain/collection"
	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/domain/library"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/domain/user"
	"github.com/bioarchive/api/pkg/logger"
)

// LibraryService manages libraries, folders, dataset slots and versions.
type LibraryService struct {
	libraries library.Repository
	datasets  dataset.Repository
	agent     *security.Agent
	perms     *PermissionService
	log       *logger.Logger
}

// NewLibraryService creates a LibraryService.
func NewLibraryService(
	libraries library.Repository,
	datasets dataset.Repository,
	agent *security.Agent,
	perms *PermissionService,
	log *logger.Logger,
) *LibraryService {
	return &LibraryService{
		libraries: libraries,
		datasets:  datasets,
		agent:     agent,
		perms:     perms,
		log:       log,
	}
}

// CreateLibrary creates a library with its hidden root folder. Admin
// surface only; handlers enforce that.
func (s *LibraryService) CreateLibrary(ctx context.Context, name, description, synopsis string) (*library.Library, error) {
	l, root, err := library.NewLibrary(name, description, synopsis)
	if err != nil {
		return nil, err
	}
	if err := s.libraries.CreateLibrary(ctx, l, root); err != nil {
		return nil, err
	}
	s.log.Info("library created", "library_id", l.ID().String(), "name", l.Name())
	return l, nil
}

// GetLibrary retrieves a library the user may see.
func (s *LibraryService) GetLibrary(ctx context.Context, u *user.User, id shared.ID, admin bool) (*library.Library, error) {
	l, err := s.libraries.GetLibrary(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.IsDeleted() && !admin {
		return nil, library.ErrLibraryNotFound
	}
	if !admin {
		ok, err := s.perms.CanAccessLibrary(ctx, u, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, library.ErrLibraryNotFound
		}
	}
	return l, nil
}

// ListLibraries retrieves the libraries visible to the user. Restricted
// libraries the user's roles cannot see are omitted, not errored.
func (s *LibraryService) ListLibraries(ctx context.Context, u *user.User, filter library.ListFilter, admin bool) ([]*library.Library, error) {
	all, err := s.libraries.ListLibraries(ctx, filter)
	if err != nil {
		return nil, err
	}
	if admin {
		return all, nil
	}

	out := make([]*library.Library, 0, len(all))
	for _, l := range all {
		ok, err := s.perms.CanAccessLibrary(ctx, u, l.ID())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// UpdateLibrary changes a library's display fields.
func (s *LibraryService) UpdateLibrary(ctx context.Context, u *user.User, id shared.ID, name, description, synopsis string, admin bool) (*library.Library, error) {
	l, err := s.GetLibrary(ctx, u, id, admin)
	if err != nil {
		return nil, err
	}
	if !admin {
		ok, err := s.perms.CanModifyLibraryItem(ctx, u, security.LibraryRef(id))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.ErrForbidden
		}
	}
	if err := l.Update(name, description, synopsis); err != nil {
		return nil, err
	}
	if err := s.libraries.UpdateLibrary(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// DeleteLibrary soft-deletes a library.
func (s *LibraryService) DeleteLibrary(ctx context.Context, u *user.User, id shared.ID, admin bool) error {
	l, err := s.GetLibrary(ctx, u, id, admin)
	if err != nil {
		return err
	}
	if !admin {
		ok, err := s.perms.CanManageLibraryItem(ctx, u, security.LibraryRef(id))
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrForbidden
		}
	}
	l.Delete()
	return s.libraries.UpdateLibrary(ctx, l)
}

// visibleFolder loads a folder and rejects it when the folder or any
// ancestor is deleted, unless the caller is an admin.
func (s *LibraryService) visibleFolder(ctx context.Context, folderID shared.ID, admin bool) (*library.Folder, error) {
	chain, err := s.libraries.FolderChain(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !admin && library.BranchDeleted(chain) {
		return nil, library.ErrFolderNotFound
	}
	return chain[0], nil
}

// CreateFolder creates a child folder. The new folder starts with its
// parent's permission rows so it stays reachable by the same roles.
func (s *LibraryService) CreateFolder(ctx context.Context, u *user.User, parentID shared.ID, name, description string, admin bool) (*library.Folder, error) {
	parent, err := s.visibleFolder(ctx, parentID, admin)
	if err != nil {
		return nil, err
	}
	if !admin {
		ok, err := s.perms.CanAddLibraryItem(ctx, u, security.FolderRef(parentID))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.ErrForbidden
		}
	}

	f, err := library.NewFolder(parent, name, description)
	if err != nil {
		return nil, err
	}
	if err := s.libraries.CreateFolder(ctx, f); err != nil {
		return nil, err
	}
	if err := s.agent.CopyLibraryPermissions(ctx, security.FolderRef(parentID), security.FolderRef(f.ID())); err != nil {
		return nil, fmt.Errorf("copy folder permissions: %w", err)
	}

	parent.IncrementItemCount()
	if err := s.libraries.UpdateFolder(ctx, parent); err != nil {
		return nil, err
	}

	s.log.Info("folder created", "folder_id", f.ID().String(), "parent_id", parentID.String())
	return f, nil
}

// GetFolder retrieves a folder the user may see.
func (s *LibraryService) GetFolder(ctx context.Context, u *user.User, id shared.ID, admin bool) (*library.Folder, error) {
	f, err := s.visibleFolder(ctx, id, admin)
	if err != nil {
		return nil, err
	}
	if !admin {
		ok, err := s.perms.CanAccessLibrary(ctx, u, f.LibraryID())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, library.ErrFolderNotFound
		}
	}
	return f, nil
}

// UpdateFolder changes a folder's display fields.
func (s *LibraryService) UpdateFolder(ctx context.Context, u *user.User, id shared.ID, name, description string, admin bool) (*library.Folder, error) {
	f, err := s.GetFolder(ctx, u, id, admin)
	if err != nil {
		return nil, err
	}
	if !admin {
		ok, err := s.perms.CanModifyLibraryItem(ctx, u, security.FolderRef(id))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.ErrForbidden
		}
	}
	if err := f.Update(name, description); err != nil {
		return nil, err
	}
	if err := s.libraries.UpdateFolder(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// DeleteFolder soft-deletes a folder. Descendants are not touched; they
// disappear from listings because every lookup checks the whole chain.
func (s *LibraryService) DeleteFolder(ctx context.Context, u *user.User, id shared.ID, admin bool) error {
	f, err := s.GetFolder(ctx, u, id, admin)
	if err != nil {
		return err
	}
	if !admin {
		ok, err := s.perms.CanModifyLibraryItem(ctx, u, security.FolderRef(id))
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrForbidden
		}
	}
	f.Delete()
	return s.libraries.UpdateFolder(ctx, f)
}

// FolderContents is one folder's listing.
type FolderContents struct {
	Folders  []*library.Folder
	Datasets []*LibraryDatasetView
}

// LibraryDatasetView pairs a slot with its current version for display.
type LibraryDatasetView struct {
	Slot    *library.LibraryDataset
	Current *library.LibraryDatasetDatasetAssociation
}

// ListFolderContents retrieves the visible children of a folder.
func (s *LibraryService) ListFolderContents(ctx context.Context, u *user.User, folderID shared.ID, admin bool) (*FolderContents, error) {
	if _, err := s.GetFolder(ctx, u, folderID, admin); err != nil {
		return nil, err
	}

	folders, err := s.libraries.ListChildFolders(ctx, folderID)
	if err != nil {
		return nil, err
	}
	slots, err := s.libraries.ListLibraryDatasets(ctx, folderID)
	if err != nil {
		return nil, err
	}

	contents := &FolderContents{}
	for _, f := range folders {
		if f.IsDeleted() && !admin {
			continue
		}
		contents.Folders = append(contents.Folders, f)
	}
	for _, slot := range slots {
		if slot.IsDeleted() && !admin {
			continue
		}
		view := &LibraryDatasetView{Slot: slot}
		if slot.HasCurrentVersion() {
			current, err := s.libraries.GetLDDA(ctx, *slot.CurrentVersionID())
			if err != nil {
				return nil, err
			}
			ok, err := s.perms.CanAccessDataset(ctx, u, current.DatasetID())
			if err != nil {
				return nil, err
			}
			if !ok && !admin {
				continue
			}
			view.Current = current
		}
		contents.Datasets = append(contents.Datasets, view)
	}
	return contents, nil
}

// AddDatasetParams collects the inputs for adding a dataset to a folder.
type AddDatasetParams struct {
	Name        string
	Info        string
	Extension   string
	Message     string
	// SelectedRoleIDs restricts access to the new dataset. Empty leaves
	// the dataset public.
	SelectedRoleIDs []shared.ID
}

// AddDataset creates a dataset, its slot and its first version in a
// folder. Access restriction is derived from the selected roles; the
// slot and version start with the folder's permission rows.
func (s *LibraryService) AddDataset(ctx context.Context, u *user.User, folderID shared.ID, p AddDatasetParams, admin bool) (*LibraryDatasetView, error) {
	folder, err := s.visibleFolder(ctx, folderID, admin)
	if err != nil {
		return nil, err
	}
	if !admin {
		ok, err := s.perms.CanAddLibraryItem(ctx, u, security.FolderRef(folderID))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.ErrForbidden
		}
	}

	// The derived grants are validated against the library before any
	// row is written, so an inconsistent selection aborts cleanly.
	grants, _, err := s.agent.DeriveRolesFromAccess(ctx, u, folder.LibraryID(), p.SelectedRoleIDs)
	if err != nil {
		return nil, err
	}

	d := dataset.New()
	if err := d.SetState(dataset.StateUpload); err != nil {
		return nil, err
	}
	if err := s.datasets.Create(ctx, d); err != nil {
		return nil, err
	}
	if err := s.agent.SetAllDatasetPermissions(ctx, d.ID(), grants); err != nil {
		return nil, fmt.Errorf("set dataset permissions: %w", err)
	}

	slot, err := library.NewLibraryDataset(folder)
	if err != nil {
		return nil, err
	}
	if err := s.libraries.CreateLibraryDataset(ctx, slot); err != nil {
		return nil, err
	}

	ldda, err := library.NewLDDA(library.NewLDDAParams{
		LibraryDatasetID: slot.ID(),
		DatasetID:        d.ID(),
		UserID:           u.ID(),
		Name:             p.Name,
		Info:             p.Info,
		Extension:        p.Extension,
		Message:          p.Message,
		State:            d.State(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.libraries.CreateLDDA(ctx, ldda); err != nil {
		return nil, err
	}

	if err := slot.SetCurrentVersion(ldda.ID()); err != nil {
		return nil, err
	}
	if err := s.libraries.UpdateLibraryDataset(ctx, slot); err != nil {
		return nil, err
	}

	if err := s.agent.CopyLibraryPermissions(ctx, security.FolderRef(folderID), security.LibraryDatasetRef(slot.ID())); err != nil {
		return nil, fmt.Errorf("copy slot permissions: %w", err)
	}
	if err := s.agent.CopyLibraryPermissions(ctx, security.FolderRef(folderID), security.LDDARef(ldda.ID())); err != nil {
		return nil, fmt.Errorf("copy version permissions: %w", err)
	}

	folder.IncrementItemCount()
	if err := s.libraries.UpdateFolder(ctx, folder); err != nil {
		return nil, err
	}

	s.log.Info("library dataset added", "library_dataset_id", slot.ID().String(),
		"dataset_id", d.ID().String(), "folder_id", folderID.String())
	return &LibraryDatasetView{Slot: slot, Current: ldda}, nil
}

// UploadNewVersion creates a new version of an existing slot and points
// the slot at it. The new version inherits the slot's permission rows so
// the pair stays identical.
func (s *LibraryService) UploadNewVersion(ctx context.Context, u *user.User, libraryDatasetID shared.ID, p AddDatasetParams, admin bool) (*library.LibraryDatasetDatasetAssociation, error) {
	slot, err := s.libraries.GetLibraryDataset(ctx, libraryDatasetID)
	if err != nil {
		return nil, err
	}
	if !admin {
		ok, err := s.perms.CanModifyLibraryItem(ctx, u, security.LibraryDatasetRef(libraryDatasetID))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.ErrForbidden
		}
	}

	d := dataset.New()
	if err := d.SetState(dataset.StateUpload); err != nil {
		return nil, err
	}
	if err := s.datasets.Create(ctx, d); err != nil {
		return nil, err
	}

	ldda, err := library.NewLDDA(library.NewLDDAParams{
		LibraryDatasetID: slot.ID(),
		DatasetID:        d.ID(),
		UserID:           u.ID(),
		ParentID:         slot.CurrentVersionID(),
		Name:             p.Name,
		Info:             p.Info,
		Extension:        p.Extension,
		Message:          p.Message,
		State:            d.State(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.libraries.CreateLDDA(ctx, ldda); err != nil {
		return nil, err
	}

	if err := slot.SetCurrentVersion(ldda.ID()); err != nil {
		return nil, err
	}
	if err := s.libraries.UpdateLibraryDataset(ctx, slot); err != nil {
		return nil, err
	}

	grants, err := s.agent.GetLibraryItemPermissions(ctx, security.LibraryDatasetRef(slot.ID()))
	if err != nil {
		return nil, err
	}
	if len(grants) > 0 {
		if err := s.agent.SetLibraryItemPermissions(ctx, slot.ID(), ldda.ID(), grants); err != nil {
			return nil, fmt.Errorf("mirror slot permissions: %w", err)
		}
	}

	s.log.Info("library dataset version uploaded",
		"library_dataset_id", slot.ID().String(), "ldda_id", ldda.ID().String())
	return ldda, nil
}

// ListVersions retrieves the version history of a slot, newest first.
func (s *LibraryService) ListVersions(ctx context.Context, u *user.User, libraryDatasetID shared.ID, admin bool) ([]*library.LibraryDatasetDatasetAssociation, error) {
	if !admin {
		ok, err := s.perms.CanModifyLibraryItem(ctx, u, security.LibraryDatasetRef(libraryDatasetID))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.ErrForbidden
		}
	}
	return s.libraries.ListVersions(ctx, libraryDatasetID)
}

// RevertToVersion points a slot back at one of its earlier versions.
func (s *LibraryService) RevertToVersion(ctx context.Context, u *user.User, libraryDatasetID, lddaID shared.ID, admin bool) error {
	slot, err := s.libraries.GetLibraryDataset(ctx, libraryDatasetID)
	if err != nil {
		return err
	}
	if !admin {
		ok, err := s.perms.CanModifyLibraryItem(ctx, u, security.LibraryDatasetRef(libraryDatasetID))
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrForbidden
		}
	}

	ldda, err := s.libraries.GetLDDA(ctx, lddaID)
	if err != nil {
		return err
	}
	if !ldda.LibraryDatasetID().Equals(slot.ID()) {
		return fmt.Errorf("%w: version does not belong to this library dataset", shared.ErrValidation)
	}

	if err := slot.SetCurrentVersion(lddaID); err != nil {
		return err
	}
	return s.libraries.UpdateLibraryDataset(ctx, slot)
}

// UpdateMetadata applies a new metadata revision to a slot's current
// version. The revision is compared against the stored one: an equal
// revision is a no-op, one that only adds attributes updates the version
// in place, and a contradicting one is preserved as a new version so the
// superseded attributes stay reachable through the lineage chain.
func (s *LibraryService) UpdateMetadata(ctx context.Context, u *user.User, libraryDatasetID shared.ID, metadata map[string]any, admin bool) (*library.LibraryDatasetDatasetAssociation, error) {
	slot, err := s.libraries.GetLibraryDataset(ctx, libraryDatasetID)
	if err != nil {
		return nil, err
	}
	if !slot.HasCurrentVersion() {
		return nil, fmt.Errorf("%w: library dataset has no current version", shared.ErrValidation)
	}
	if !admin {
		ok, err := s.perms.CanModifyLibraryItem(ctx, u, security.LibraryDatasetRef(libraryDatasetID))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.ErrForbidden
		}
	}

	current, err := s.libraries.GetLDDA(ctx, *slot.CurrentVersionID())
	if err != nil {
		return nil, err
	}

	switch collection.CompareMetadata(current.Metadata(), metadata) {
	case collection.Equal:
		return current, nil
	case collection.Subset:
		current.SetMetadata(metadata)
		if err := s.libraries.UpdateLDDA(ctx, current); err != nil {
			return nil, err
		}
		s.log.Info("library dataset metadata extended", "ldda_id", current.ID().String())
		return current, nil
	}

	parentID := current.ID()
	ldda, err := library.NewLDDA(library.NewLDDAParams{
		LibraryDatasetID: slot.ID(),
		DatasetID:        current.DatasetID(),
		UserID:           u.ID(),
		ParentID:         &parentID,
		Name:             current.Name(),
		Info:             current.Info(),
		Extension:        current.Extension(),
		State:            current.State(),
	})
	if err != nil {
		return nil, err
	}
	ldda.SetMetadata(metadata)
	if err := s.libraries.CreateLDDA(ctx, ldda); err != nil {
		return nil, err
	}

	if err := slot.SetCurrentVersion(ldda.ID()); err != nil {
		return nil, err
	}
	if err := s.libraries.UpdateLibraryDataset(ctx, slot); err != nil {
		return nil, err
	}

	grants, err := s.agent.GetLibraryItemPermissions(ctx, security.LibraryDatasetRef(slot.ID()))
	if err != nil {
		return nil, err
	}
	if len(grants) > 0 {
		if err := s.agent.SetLibraryItemPermissions(ctx, slot.ID(), ldda.ID(), grants); err != nil {
			return nil, fmt.Errorf("mirror slot permissions: %w", err)
		}
	}

	s.log.Info("library dataset metadata superseded",
		"library_dataset_id", slot.ID().String(), "ldda_id", ldda.ID().String())
	return ldda, nil
}

// DeleteLibraryDataset soft-deletes a slot.
func (s *LibraryService) DeleteLibraryDataset(ctx context.Context, u *user.User, id shared.ID, admin bool) error {
	slot, err := s.libraries.GetLibraryDataset(ctx, id)
	if err != nil {
		return err
	}
	if !admin {
		ok, err := s.perms.CanModifyLibraryItem(ctx, u, security.LibraryDatasetRef(id))
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrForbidden
		}
	}
	slot.Delete()
	return s.libraries.UpdateLibraryDataset(ctx, slot)
}

// CreateTemplate creates a metadata template. Admin surface only.
func (s *LibraryService) CreateTemplate(ctx context.Context, name, description string, fields []library.TemplateField) (*library.Template, error) {
	t, err := library.NewTemplate(name, description, fields)
	if err != nil {
		return nil, err
	}
	if err := s.libraries.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTemplates retrieves all metadata templates.
func (s *LibraryService) ListTemplates(ctx context.Context) ([]*library.Template, error) {
	return s.libraries.ListTemplates(ctx)
}

// AttachTemplate attaches a template to a library item.
func (s *LibraryService) AttachTemplate(ctx context.Context, u *user.User, itemKind library.ItemKind, itemID, templateID shared.ID, inheritable, admin bool) (*library.InfoAssociation, error) {
	if _, err := s.libraries.GetTemplate(ctx, templateID); err != nil {
		return nil, err
	}
	if !admin {
		ref, err := itemRefForKind(itemKind, itemID)
		if err != nil {
			return nil, err
		}
		ok, err := s.perms.CanModifyLibraryItem(ctx, u, ref)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.ErrForbidden
		}
	}

	ia, err := library.NewInfoAssociation(itemKind, itemID, templateID, inheritable)
	if err != nil {
		return nil, err
	}
	if err := s.libraries.SaveInfoAssociation(ctx, ia); err != nil {
		return nil, err
	}
	return ia, nil
}

// EffectiveTemplate resolves the template applying to a library item:
// the item's own association, or the nearest inheritable ancestor one.
// With restrict set only the item's own association counts. Returns
// (nil, false, nil) when nothing applies.
func (s *LibraryService) EffectiveTemplate(ctx context.Context, itemKind library.ItemKind, itemID shared.ID, restrict bool) (*library.Template, bool, error) {
	chain, err := s.infoAssociationChain(ctx, itemKind, itemID)
	if err != nil {
		return nil, false, err
	}

	ia, inherited := library.ResolveInfoAssociation(chain, restrict)
	if ia == nil {
		return nil, false, nil
	}
	t, err := s.libraries.GetTemplate(ctx, ia.TemplateID())
	if err != nil {
		return nil, false, err
	}
	return t, inherited, nil
}

// infoAssociationChain builds the association slots from the item up to
// its library, nearest-first, with nil entries for items carrying none.
func (s *LibraryService) infoAssociationChain(ctx context.Context, itemKind library.ItemKind, itemID shared.ID) ([]*library.InfoAssociation, error) {
	var chain []*library.InfoAssociation

	appendFor := func(kind library.ItemKind, id shared.ID) error {
		ia, err := s.libraries.GetInfoAssociation(ctx, kind, id)
		if err != nil {
			return err
		}
		chain = append(chain, ia)
		return nil
	}

	switch itemKind {
	case library.ItemKindLibrary:
		if err := appendFor(library.ItemKindLibrary, itemID); err != nil {
			return nil, err
		}

	case library.ItemKindFolder:
		folders, err := s.libraries.FolderChain(ctx, itemID)
		if err != nil {
			return nil, err
		}
		for _, f := range folders {
			if err := appendFor(library.ItemKindFolder, f.ID()); err != nil {
				return nil, err
			}
		}
		if err := appendFor(library.ItemKindLibrary, folders[0].LibraryID()); err != nil {
			return nil, err
		}

	case library.ItemKindLDDA:
		if err := appendFor(library.ItemKindLDDA, itemID); err != nil {
			return nil, err
		}
		ldda, err := s.libraries.GetLDDA(ctx, itemID)
		if err != nil {
			return nil, err
		}
		slot, err := s.libraries.GetLibraryDataset(ctx, ldda.LibraryDatasetID())
		if err != nil {
			return nil, err
		}
		folders, err := s.libraries.FolderChain(ctx, slot.FolderID())
		if err != nil {
			return nil, err
		}
		for _, f := range folders {
			if err := appendFor(library.ItemKindFolder, f.ID()); err != nil {
				return nil, err
			}
		}
		if err := appendFor(library.ItemKindLibrary, folders[0].LibraryID()); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: invalid item kind %q", shared.ErrValidation, itemKind)
	}

	return chain, nil
}

func itemRefForKind(kind library.ItemKind, id shared.ID) (security.ItemRef, error) {
	switch kind {
	case library.ItemKindLibrary:
		return security.LibraryRef(id), nil
	case library.ItemKindFolder:
		return security.FolderRef(id), nil
	case library.ItemKindLDDA:
		return security.LDDARef(id), nil
	default:
		return security.ItemRef{}, fmt.Errorf("%w: invalid item kind %q", shared.ErrValidation, kind)
	}
}
