package compile

import (
	"sort"

	"github.com/edp1096/gridflow/pkg/model"
)

// island is the set of bus/branch indices (into the whole Grid) belonging
// to one connected component of the active-branch graph.
type island struct {
	buses    []int
	branches []int
}

// findIslands partitions the grid's buses into connected components joined
// by active branches. Buses with no incident active branch form singleton
// islands.
func findIslands(g *model.Grid) []island {
	n := len(g.Buses)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	branchesByComponent := make(map[int][]int)
	for bi, br := range g.Branches {
		if !br.Active {
			continue
		}
		union(br.From, br.To)
		_ = bi
	}

	components := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := find(i)
		components[root] = append(components[root], i)
	}

	for bi, br := range g.Branches {
		if !br.Active {
			continue
		}
		root := find(br.From)
		branchesByComponent[root] = append(branchesByComponent[root], bi)
	}

	roots := make([]int, 0, len(components))
	for root := range components {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	islands := make([]island, 0, len(components))
	for _, root := range roots {
		buses := components[root]
		sort.Ints(buses)
		branches := branchesByComponent[root]
		sort.Ints(branches)
		islands = append(islands, island{buses: buses, branches: branches})
	}
	return islands
}
