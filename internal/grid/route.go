package grid

import (
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// cellGraph joins every non-wall cell to its non-wall orthogonal neighbours.
// Node IDs are y*width+x.
func cellGraph(p Provider) *simple.UndirectedGraph {
	width, height := p.Bounds()
	g := simple.NewUndirectedGraph()
	id := func(x, y int) simple.Node { return simple.Node(int64(y*width + x)) }
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if p.Classify(x, y) == Wall {
				continue
			}
			n := id(x, y)
			if g.Node(n.ID()) == nil {
				g.AddNode(n)
			}
			if x > 0 && p.Classify(x-1, y) != Wall {
				g.SetEdge(g.NewEdge(id(x-1, y), n))
			}
			if y > 0 && p.Classify(x, y-1) != Wall {
				g.SetEdge(g.NewEdge(id(x, y-1), n))
			}
		}
	}
	return g
}

func nodeID(p Provider, c Coordinate) int64 {
	width, _ := p.Bounds()
	return int64(c.Y*width + c.X)
}

// Reachable reports whether any sequence of moves leads from start to finish
// without touching a wall.
func Reachable(p Provider) (bool, error) {
	start, finish, err := Locate(p)
	if err != nil {
		return false, err
	}
	g := cellGraph(p)
	return topo.PathExistsIn(g, g.Node(nodeID(p, start)), g.Node(nodeID(p, finish))), nil
}

// ShortestMoves returns the fewest moves from start to finish. ok is false
// when the finish is walled off. Layout reports use it as a MinLen hint; the
// evolutionary search never consults it.
func ShortestMoves(p Provider) (moves int, ok bool, err error) {
	start, finish, err := Locate(p)
	if err != nil {
		return 0, false, err
	}
	g := cellGraph(p)
	shortest := path.DijkstraFrom(g.Node(nodeID(p, start)), g)
	route, _ := shortest.To(nodeID(p, finish))
	if len(route) == 0 {
		return 0, false, nil
	}
	return len(route) - 1, true, nil
}
