package app

import (
	"context"
	"fmt"

	"github.com/bioarchive/api/internal/metrics"
	"github.com/bioarchive/api/pkg/domain/collection"
	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/domain/library"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/domain/user"
	"github.com/bioarchive/api/pkg/logger"
)

// CollectionService builds, reads and maintains dataset collections.
type CollectionService struct {
	collections collection.Repository
	histories   dataset.HistoryRepository
	libraries   library.Repository
	perms       *PermissionService
	enqueuer    TaskEnqueuer
	metrics     *metrics.Metrics
	log         *logger.Logger
}

// NewCollectionService creates a CollectionService.
func NewCollectionService(
	collections collection.Repository,
	histories dataset.HistoryRepository,
	libraries library.Repository,
	perms *PermissionService,
	enqueuer TaskEnqueuer,
	m *metrics.Metrics,
	log *logger.Logger,
) *CollectionService {
	return &CollectionService{
		collections: collections,
		histories:   histories,
		libraries:   libraries,
		perms:       perms,
		enqueuer:    enqueuer,
		metrics:     m,
		log:         log,
	}
}

// ElementInput describes one element of a collection being created.
// Exactly one of HDAID, LDDAID or Elements must be set: a leaf instance
// reference or a nested child collection.
type ElementInput struct {
	Identifier string
	HDAID      *shared.ID
	LDDAID     *shared.ID
	Elements   []ElementInput
}

// CreateCollectionParams collects the inputs for creating a collection.
type CreateCollectionParams struct {
	Type     string
	Elements []ElementInput
}

// Create builds and persists a collection from a nested element
// description. Every referenced instance must exist and its underlying
// dataset must be accessible to the caller. Each level that is already
// fully terminal is marked populated immediately; the rest stay new
// until the completion fan-out settles them.
func (s *CollectionService) Create(ctx context.Context, u *user.User, p CreateCollectionParams) (*collection.Tree, error) {
	ct, err := collection.ParseType(p.Type)
	if err != nil {
		return nil, err
	}

	tree, err := s.buildTree(ctx, u, ct, p.Elements)
	if err != nil {
		return nil, err
	}
	if err := s.collections.CreateTree(ctx, tree); err != nil {
		return nil, err
	}

	s.log.Info("collection created", "collection_id", tree.Collection.ID().String(),
		"type", tree.Collection.CollectionType().String(), "leaves", tree.LeafCount())
	return tree, nil
}

func (s *CollectionService) buildTree(ctx context.Context, u *user.User, ct collection.Type, inputs []ElementInput) (*collection.Tree, error) {
	c, err := collection.New(ct)
	if err != nil {
		return nil, err
	}

	childType, hasChildren := ct.Child()
	nodes := make([]*collection.Node, 0, len(inputs))
	for i, in := range inputs {
		switch {
		case in.HDAID != nil:
			hda, err := s.histories.GetHDA(ctx, *in.HDAID)
			if err != nil {
				return nil, err
			}
			if err := s.requireDatasetAccess(ctx, u, hda.DatasetID()); err != nil {
				return nil, err
			}
			el, err := collection.NewHDAElement(c.ID(), i, in.Identifier, hda.ID())
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, &collection.Node{Element: el, Leaf: hda})

		case in.LDDAID != nil:
			ldda, err := s.libraries.GetLDDA(ctx, *in.LDDAID)
			if err != nil {
				return nil, err
			}
			if err := s.requireDatasetAccess(ctx, u, ldda.DatasetID()); err != nil {
				return nil, err
			}
			el, err := collection.NewLDDAElement(c.ID(), i, in.Identifier, ldda.ID())
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, &collection.Node{Element: el, Leaf: ldda})

		case len(in.Elements) > 0:
			if !hasChildren {
				return nil, &collection.StructureError{
					Message: fmt.Sprintf("collection of type %q cannot hold nested collections", ct),
				}
			}
			child, err := s.buildTree(ctx, u, childType, in.Elements)
			if err != nil {
				return nil, err
			}
			el, err := collection.NewChildElement(c.ID(), i, in.Identifier, child.Collection.ID())
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, &collection.Node{Element: el, Child: child})

		default:
			return nil, &collection.StructureError{
				Message: fmt.Sprintf("element %q references no dataset instance or nested elements", in.Identifier),
			}
		}
	}

	tree, err := collection.NewTree(c, nodes)
	if err != nil {
		return nil, err
	}
	if tree.AggregatePopulatedState() == collection.PopulatedStateOK {
		if err := c.MarkPopulated(len(tree.Elements)); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// CreatePair builds a "paired" collection from forward and reverse
// history dataset instances.
func (s *CollectionService) CreatePair(ctx context.Context, u *user.User, forwardHDAID, reverseHDAID shared.ID) (*collection.Tree, error) {
	forward, err := s.histories.GetHDA(ctx, forwardHDAID)
	if err != nil {
		return nil, err
	}
	reverse, err := s.histories.GetHDA(ctx, reverseHDAID)
	if err != nil {
		return nil, err
	}
	for _, hda := range []*dataset.HistoryDatasetAssociation{forward, reverse} {
		if err := s.requireDatasetAccess(ctx, u, hda.DatasetID()); err != nil {
			return nil, err
		}
	}

	tree, err := collection.NewPairedTree(forward, reverse)
	if err != nil {
		return nil, err
	}
	if tree.AggregatePopulatedState() == collection.PopulatedStateOK {
		if err := tree.Collection.MarkPopulated(len(tree.Elements)); err != nil {
			return nil, err
		}
	}
	if err := s.collections.CreateTree(ctx, tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Get retrieves a collection record without its elements.
func (s *CollectionService) Get(ctx context.Context, id shared.ID) (*collection.DatasetCollection, error) {
	return s.collections.Get(ctx, id)
}

// GetTree retrieves the full nested structure. The caller must be able
// to access every leaf's underlying dataset.
func (s *CollectionService) GetTree(ctx context.Context, u *user.User, id shared.ID) (*collection.Tree, error) {
	tree, err := s.collections.GetTree(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireTreeAccess(ctx, u, tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// ExtractElement resolves one element by its identifier path. Segments
// match identifiers first, then numeric indices.
func (s *CollectionService) ExtractElement(ctx context.Context, u *user.User, id shared.ID, path ...string) (*collection.Node, error) {
	tree, err := s.GetTree(ctx, u, id)
	if err != nil {
		return nil, err
	}
	return tree.FindElement(path...)
}

// ListFailedElements returns the leaves whose dataset errored, with
// their identifier paths.
func (s *CollectionService) ListFailedElements(ctx context.Context, u *user.User, id shared.ID) ([]collection.PathElement, error) {
	tree, err := s.GetTree(ctx, u, id)
	if err != nil {
		return nil, err
	}
	return tree.FailedElements(), nil
}

// Summary returns the distinct leaf states and extensions.
func (s *CollectionService) Summary(ctx context.Context, u *user.User, id shared.ID) (collection.StateSummary, error) {
	tree, err := s.GetTree(ctx, u, id)
	if err != nil {
		return collection.StateSummary{}, err
	}
	return tree.StatesAndExtensionsSummary(), nil
}

// RefreshPopulatedState recomputes one collection's populated state from
// current descendant states.
func (s *CollectionService) RefreshPopulatedState(ctx context.Context, id shared.ID) (collection.PopulatedState, error) {
	state, err := s.collections.RefreshPopulatedState(ctx, id)
	if err != nil {
		return "", err
	}
	s.metrics.CollectionRefreshes.WithLabelValues(state.String()).Inc()
	return state, nil
}

// RequestRefresh enqueues an asynchronous refresh of one collection.
func (s *CollectionService) RequestRefresh(ctx context.Context, id shared.ID) error {
	if s.enqueuer == nil {
		_, err := s.RefreshPopulatedState(ctx, id)
		return err
	}
	return s.enqueuer.EnqueueCollectionRefresh(ctx, id)
}

func (s *CollectionService) requireDatasetAccess(ctx context.Context, u *user.User, datasetID shared.ID) error {
	ok, err := s.perms.CanAccessDataset(ctx, u, datasetID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrForbidden
	}
	return nil
}

// datasetCarrier is satisfied by both leaf instance types.
type datasetCarrier interface {
	DatasetID() shared.ID
}

func (s *CollectionService) requireTreeAccess(ctx context.Context, u *user.User, tree *collection.Tree) error {
	for _, instance := range tree.DatasetInstances() {
		carrier, ok := instance.(datasetCarrier)
		if !ok {
			continue
		}
		if err := s.requireDatasetAccess(ctx, u, carrier.DatasetID()); err != nil {
			return err
		}
	}
	return nil
}
