package cluster

import (
	"github.com/kvasync/asyncore/api"
)

// Router resolves the node currently owning a key's partition. Real
// partition-map maintenance is out of scope (§1); production code
// supplies a router backed by the partition table, tests supply a
// static or round-robin one.
type Router func(key api.Key) (*Node, error)

// Cluster is the thin adapter the command engine and batch executor
// consult for GetNode (§4.8). It owns no tending loop — nodes are
// supplied at construction and never replaced.
type Cluster struct {
	nodes  []*Node
	byName map[string]*Node
	router Router
}

// NewCluster builds a Cluster over a fixed node list and routing
// function.
func NewCluster(nodes []*Node, router Router) *Cluster {
	byName := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		byName[n.Name] = n
	}
	return &Cluster{nodes: nodes, byName: byName, router: router}
}

// GetNode resolves the node for key by calling the router and returns
// its result unchanged; a router that declines with a Backoff
// CommandError (§4.8 "may raise Backoff") has that error passed through.
func (c *Cluster) GetNode(key api.Key) (*Node, error) {
	return c.router(key)
}

// Nodes returns every node known to the cluster (used by the batch
// executor's optional cluster-stability validation, §4.7 item 4, and by
// tests).
func (c *Cluster) Nodes() []*Node { return c.nodes }

// NodeByName looks a node up by name.
func (c *Cluster) NodeByName(name string) (*Node, bool) {
	n, ok := c.byName[name]
	return n, ok
}
