// Package batch implements BatchExecutor (C7, §4.7): splitting a keyset
// by owning node, fanning out per-node sub-commands built on
// command.MultiCommand, and joining results under AnySuccess/FirstFailure
// semantics with split-retry on partition migration. Grounded on
// command.ScanCommand's MultiCommand wrapping pattern, generalized from
// one fixed node to the per-key routed groups §4.7 requires.
package batch

import (
	"github.com/kvasync/asyncore/api"
	"github.com/kvasync/asyncore/cluster"
)

// BatchNode is one per-node group of a batch request (§3 "BatchNode
// group"): the target node plus every original key-array offset routed
// to it. NamespaceGroups is populated only when the node does not accept
// a multi-namespace batch in one request (§4.7 step 1), splitting
// Offsets further by namespace.
type BatchNode struct {
	Node            *cluster.Node
	Offsets         []int
	NamespaceGroups map[string][]int
}

// buildBatchNodes groups keys by their currently-resolved owning node
// (§4.7 step 1). Offsets preserve the order keys were supplied in within
// each group, so request encoding and CheckKeyDigest's positional lookup
// stay deterministic. The union of every returned group's Offsets (after
// NamespaceGroups flattening) equals {0..len(keys)-1} exactly, since
// router is consulted exactly once per key (§3 BatchNode invariant).
func buildBatchNodes(router cluster.Router, keys []api.Key) ([]*BatchNode, error) {
	order := make([]string, 0, 4)
	byName := make(map[string]*BatchNode, 4)

	for i, k := range keys {
		node, err := router(k)
		if err != nil {
			return nil, err
		}
		g, ok := byName[node.Name]
		if !ok {
			g = &BatchNode{Node: node}
			byName[node.Name] = g
			order = append(order, node.Name)
		}
		g.Offsets = append(g.Offsets, i)
	}

	groups := make([]*BatchNode, 0, len(order))
	for _, name := range order {
		g := byName[name]
		if !g.Node.SupportsMultiNamespaceBatch() {
			g.NamespaceGroups = splitByNamespace(keys, g.Offsets)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func splitByNamespace(keys []api.Key, offsets []int) map[string][]int {
	out := make(map[string][]int)
	for _, off := range offsets {
		ns := keys[off].Namespace
		out[ns] = append(out[ns], off)
	}
	return out
}

// dispatchUnit is one sub-command's worth of work: a target node plus
// the original-key-array offsets it must answer for. A BatchNode with no
// NamespaceGroups becomes exactly one dispatchUnit; one with
// NamespaceGroups becomes one per namespace.
type dispatchUnit struct {
	node    *cluster.Node
	offsets []int
}

func planDispatch(router cluster.Router, keys []api.Key) ([]dispatchUnit, error) {
	groups, err := buildBatchNodes(router, keys)
	if err != nil {
		return nil, err
	}
	units := make([]dispatchUnit, 0, len(groups))
	for _, g := range groups {
		if g.NamespaceGroups == nil {
			units = append(units, dispatchUnit{node: g.Node, offsets: g.Offsets})
			continue
		}
		for _, offs := range g.NamespaceGroups {
			units = append(units, dispatchUnit{node: g.Node, offsets: offs})
		}
	}
	return units, nil
}
