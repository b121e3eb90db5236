// Package graph orders workflow nodes so every node runs after its upstream nodes.
package graph

import (
	"container/heap"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/protocol"
)

// Order returns the nodes in a topological order of the connection graph.
//
// Ties between ready nodes are broken by their position in nodes, so the result is
// deterministic and nodes with no connections keep their relative input order. A node
// id listed twice is kept once, at its first position. Cycles, self-edges included,
// fail with protocol.ErrCycleDetected.
func Order(nodes []*models.WorkflowNode, connections []*models.Connection) ([]*models.WorkflowNode, error) {
	index := make(map[string]int, len(nodes))
	unique := make([]*models.WorkflowNode, 0, len(nodes))

	for _, node := range nodes {
		if _, seen := index[node.ID]; seen {
			continue
		}

		index[node.ID] = len(unique)
		unique = append(unique, node)
	}

	inDegree := make([]int, len(unique))
	downstream := make([][]int, len(unique))
	edges := make(map[[2]int]bool, len(connections))

	for _, conn := range connections {
		from, ok := index[conn.FromNodeID]
		if !ok {
			return nil, protocol.Configuration("connection %s references unknown node %q", conn.ID, conn.FromNodeID)
		}

		to, ok := index[conn.ToNodeID]
		if !ok {
			return nil, protocol.Configuration("connection %s references unknown node %q", conn.ID, conn.ToNodeID)
		}

		if from == to {
			return nil, protocol.CycleDetected()
		}

		// parallel connections between the same pair count once
		if edges[[2]int{from, to}] {
			continue
		}

		edges[[2]int{from, to}] = true
		downstream[from] = append(downstream[from], to)
		inDegree[to]++
	}

	ready := &readyQueue{}
	for i := range unique {
		if inDegree[i] == 0 {
			heap.Push(ready, i)
		}
	}

	ordered := make([]*models.WorkflowNode, 0, len(unique))
	for ready.Len() > 0 {
		current := heap.Pop(ready).(int)
		ordered = append(ordered, unique[current])

		for _, next := range downstream[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if len(ordered) != len(unique) {
		return nil, protocol.CycleDetected()
	}

	return ordered, nil
}

// readyQueue is a min-heap of node positions.
type readyQueue []int

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *readyQueue) Push(x any) {
	*q = append(*q, x.(int))
}

func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]

	return item
}
