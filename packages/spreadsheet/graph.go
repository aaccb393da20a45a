package spreadsheet

import (
	"cmp"
	"slices"
)

// DependencyNode represents a cell in the dependency graph
type DependencyNode struct {
	Address CellAddress

	// cell-to-cell dependencies
	CellPrecedents map[CellAddress]*DependencyNode // cells this cell depends on
	CellDependents map[CellAddress]*DependencyNode // cells that depend on this cell

	// range dependencies (only for formula cells that depend on ranges)
	RangePrecedents map[RangeAddress]struct{}

	// set for formula cells, plain precedents only exist while referenced
	HasFormula bool
}

// DependencyGraph tracks which formula cells read which cells and ranges
type DependencyGraph struct {
	nodes          map[CellAddress]*DependencyNode           // all nodes in the graph
	rangeObservers map[RangeAddress]map[CellAddress]struct{} // range -> cells that depend on it
	volatileCells  map[CellAddress]struct{}                  // cells with volatile functions (always recalculate)
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:          make(map[CellAddress]*DependencyNode),
		rangeObservers: make(map[RangeAddress]map[CellAddress]struct{}),
		volatileCells:  make(map[CellAddress]struct{}),
	}
}

// GetOrCreateNode gets an existing node or creates a new one
func (dg *DependencyGraph) GetOrCreateNode(addr CellAddress) *DependencyNode {
	if node, exists := dg.nodes[addr]; exists {
		return node
	}

	node := &DependencyNode{
		Address:         addr,
		CellPrecedents:  make(map[CellAddress]*DependencyNode),
		CellDependents:  make(map[CellAddress]*DependencyNode),
		RangePrecedents: make(map[RangeAddress]struct{}),
	}
	dg.nodes[addr] = node
	return node
}

// GetNode retrieves a node if it exists
func (dg *DependencyGraph) GetNode(addr CellAddress) (*DependencyNode, bool) {
	node, exists := dg.nodes[addr]
	return node, exists
}

// SetFormula registers addr as a formula cell reading refs, replacing its
// previous edges
func (dg *DependencyGraph) SetFormula(addr CellAddress, refs []Reference, volatile bool) {
	dg.ClearDependencies(addr)
	node := dg.GetOrCreateNode(addr)
	node.HasFormula = true
	for _, ref := range refs {
		if ref.IsRange {
			dg.AddRangeDependency(addr, RangeAddress{SheetID: ref.SheetID, Zone: ref.Zone})
			continue
		}
		dg.AddCellDependency(addr, CellAddress{SheetID: ref.SheetID, Col: ref.Zone.Left, Row: ref.Zone.Top})
	}
	if volatile {
		dg.volatileCells[addr] = struct{}{}
	} else {
		delete(dg.volatileCells, addr)
	}
}

// RemoveFormula drops the outgoing edges of addr. incoming edges stay so
// that dependents are still found when the cell changes again.
func (dg *DependencyGraph) RemoveFormula(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	dg.ClearDependencies(addr)
	node.HasFormula = false
	delete(dg.volatileCells, addr)
	dg.cleanupNodeIfEmpty(addr)
}

// cleanupNodeIfEmpty removes a node if it has no dependencies or formula
func (dg *DependencyGraph) cleanupNodeIfEmpty(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}

	if node.HasFormula ||
		len(node.CellPrecedents) > 0 ||
		len(node.CellDependents) > 0 ||
		len(node.RangePrecedents) > 0 {
		return
	}
	delete(dg.nodes, addr)
}

// AddCellDependency adds a cell-to-cell dependency (from depends on to)
func (dg *DependencyGraph) AddCellDependency(from, to CellAddress) {
	fromNode := dg.GetOrCreateNode(from)
	toNode := dg.GetOrCreateNode(to)

	fromNode.CellPrecedents[to] = toNode
	toNode.CellDependents[from] = fromNode
}

// AddRangeDependency adds a cell-to-range dependency (from depends on range)
func (dg *DependencyGraph) AddRangeDependency(from CellAddress, rangeAddr RangeAddress) {
	node := dg.GetOrCreateNode(from)
	node.RangePrecedents[rangeAddr] = struct{}{}

	if dg.rangeObservers[rangeAddr] == nil {
		dg.rangeObservers[rangeAddr] = make(map[CellAddress]struct{})
	}
	dg.rangeObservers[rangeAddr][from] = struct{}{}
}

// ClearDependencies clears all outgoing dependencies of a cell
func (dg *DependencyGraph) ClearDependencies(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}

	for precedentAddr, precedentNode := range node.CellPrecedents {
		delete(precedentNode.CellDependents, addr)
		delete(node.CellPrecedents, precedentAddr)
		dg.cleanupNodeIfEmpty(precedentAddr)
	}

	for rangeAddr := range node.RangePrecedents {
		if observers, exists := dg.rangeObservers[rangeAddr]; exists {
			delete(observers, addr)
			if len(observers) == 0 {
				delete(dg.rangeObservers, rangeAddr)
			}
		}
		delete(node.RangePrecedents, rangeAddr)
	}
}

// GetDirectDependents returns the formula cells reading addr directly or
// through a range
func (dg *DependencyGraph) GetDirectDependents(addr CellAddress) []CellAddress {
	var result []CellAddress
	if node, exists := dg.nodes[addr]; exists {
		for dependentAddr := range node.CellDependents {
			result = append(result, dependentAddr)
		}
	}
	for rangeAddr, observers := range dg.rangeObservers {
		if rangeAddr.Contains(addr) {
			for observerAddr := range observers {
				result = append(result, observerAddr)
			}
		}
	}
	return result
}

// GetAllDependents returns all cells affected by the given cells
// (transitive closure), the cells themselves excluded unless they are
// reached again through a cycle
func (dg *DependencyGraph) GetAllDependents(addrs ...CellAddress) []CellAddress {
	visited := make(map[CellAddress]struct{})
	var result []CellAddress
	queue := slices.Clone(addrs)
	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]
		for _, dependent := range dg.GetDirectDependents(addr) {
			if _, seen := visited[dependent]; seen {
				continue
			}
			visited[dependent] = struct{}{}
			result = append(result, dependent)
			queue = append(queue, dependent)
		}
	}
	return result
}

// GetCalculationOrder orders the pending formula cells so that every cell
// comes after the pending cells it reads (Kahn's algorithm). cells left on
// cycles are appended in address order.
func (dg *DependencyGraph) GetCalculationOrder(pending map[CellAddress]struct{}) []CellAddress {
	inDegree := make(map[CellAddress]int, len(pending))
	edges := make(map[CellAddress][]CellAddress, len(pending))
	for addr := range pending {
		inDegree[addr] += 0
		for _, dependent := range dg.GetDirectDependents(addr) {
			if _, ok := pending[dependent]; !ok || dependent == addr {
				continue
			}
			if slices.Contains(edges[addr], dependent) {
				continue
			}
			edges[addr] = append(edges[addr], dependent)
			inDegree[dependent]++
		}
	}

	var ready []CellAddress
	for addr, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, addr)
		}
	}
	slices.SortFunc(ready, compareAddresses)

	order := make([]CellAddress, 0, len(pending))
	done := make(map[CellAddress]struct{}, len(pending))
	for len(ready) > 0 {
		addr := ready[0]
		ready = ready[1:]
		order = append(order, addr)
		done[addr] = struct{}{}

		var next []CellAddress
		for _, dependent := range edges[addr] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				next = append(next, dependent)
			}
		}
		slices.SortFunc(next, compareAddresses)
		ready = append(ready, next...)
	}

	if len(order) < len(pending) {
		var cyclic []CellAddress
		for addr := range pending {
			if _, ok := done[addr]; !ok {
				cyclic = append(cyclic, addr)
			}
		}
		slices.SortFunc(cyclic, compareAddresses)
		order = append(order, cyclic...)
	}
	return order
}

// IsVolatile checks if a cell contains volatile functions
func (dg *DependencyGraph) IsVolatile(addr CellAddress) bool {
	_, isVolatile := dg.volatileCells[addr]
	return isVolatile
}

// GetVolatileCells returns all cells marked as volatile
func (dg *DependencyGraph) GetVolatileCells() []CellAddress {
	result := make([]CellAddress, 0, len(dg.volatileCells))
	for addr := range dg.volatileCells {
		result = append(result, addr)
	}
	return result
}

// NodeCount returns the number of nodes in the graph
func (dg *DependencyGraph) NodeCount() int {
	return len(dg.nodes)
}

// RangeObserverCount returns the number of observed ranges
func (dg *DependencyGraph) RangeObserverCount() int {
	return len(dg.rangeObservers)
}

// Clear removes all nodes and dependencies from the graph
func (dg *DependencyGraph) Clear() {
	dg.nodes = make(map[CellAddress]*DependencyNode)
	dg.rangeObservers = make(map[RangeAddress]map[CellAddress]struct{})
	dg.volatileCells = make(map[CellAddress]struct{})
}

func compareAddresses(a, b CellAddress) int {
	return cmp.Or(
		cmp.Compare(a.SheetID, b.SheetID),
		cmp.Compare(a.Row, b.Row),
		cmp.Compare(a.Col, b.Col),
	)
}
