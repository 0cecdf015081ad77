// Package groups computes transitive closures over the group hierarchy.
//
// Groups form a forest via parent_id, but nothing in storage prevents a
// data-integrity cycle (g1 -> g2 -> g1). The resolver tolerates cycles by
// refusing to re-enter any node already on the active traversal path,
// returning the finite set discovered so far instead of looping. A cycle is
// an anomaly worth surfacing, so it is logged, but it is never an error.
package groups

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ChildLister returns the direct children of a group.
type ChildLister interface {
	Children(ctx context.Context, groupID int64) ([]int64, error)
}

// ChildListerFunc adapts a function to the ChildLister interface.
type ChildListerFunc func(ctx context.Context, groupID int64) ([]int64, error)

// Children implements ChildLister.
func (f ChildListerFunc) Children(ctx context.Context, groupID int64) ([]int64, error) {
	return f(ctx, groupID)
}

// ClosureResolver walks parent->child edges to produce descendant sets.
type ClosureResolver struct {
	lister ChildLister
	log    *logrus.Entry
}

// NewClosureResolver builds a resolver over the given edge source.
func NewClosureResolver(lister ChildLister) *ClosureResolver {
	return &ClosureResolver{
		lister: lister,
		log:    logrus.WithField("component", "group-closure"),
	}
}

// Descendants returns the transitive descendant set of root, excluding root
// itself. The result is always finite, even over a cyclic graph.
func (r *ClosureResolver) Descendants(ctx context.Context, root int64) (map[int64]struct{}, error) {
	found := make(map[int64]struct{})
	onPath := map[int64]struct{}{root: {}}
	if err := r.walk(ctx, root, root, found, onPath); err != nil {
		return nil, err
	}
	return found, nil
}

func (r *ClosureResolver) walk(ctx context.Context, root, node int64, found, onPath map[int64]struct{}) error {
	children, err := r.lister.Children(ctx, node)
	if err != nil {
		return err
	}
	for _, child := range children {
		if _, active := onPath[child]; active {
			r.log.WithFields(logrus.Fields{
				"root":   root,
				"parent": node,
				"child":  child,
			}).Warn("cycle detected in group hierarchy, skipping edge")
			continue
		}
		if _, ok := found[child]; ok {
			// Already reached via another branch.
			continue
		}
		found[child] = struct{}{}
		onPath[child] = struct{}{}
		if err := r.walk(ctx, root, child, found, onPath); err != nil {
			return err
		}
		delete(onPath, child)
	}
	return nil
}
