package nav

import (
	"fmt"
	"sync"
)

// GridOracle is a deterministic NavigationOracle over a rectangular grid of
// walkable cells. It backs tests and the offline demo pipeline, where no real
// baked surface is available. Reachability is 4-connected flood fill over the
// walkable cells; path queries return a cell-center corridor.
type GridOracle struct {
	// Origin is the minimum corner of cell (0, 0).
	Origin   Vec3
	CellSize float64
	// Walkable is indexed [y][x]; rows must have equal length.
	Walkable [][]bool
	// SurfaceZ maps a horizontal position to surface height. Nil means the
	// surface is flat at Origin.Z.
	SurfaceZ func(x, y float64) float64
	// Unbaked makes every query fail with ErrSurfaceNotBaked.
	Unbaked bool

	once   sync.Once
	labels [][]int
}

var _ NavigationOracle = (*GridOracle)(nil)

func (g *GridOracle) surfaceZ(x, y float64) float64 {
	if g.SurfaceZ == nil {
		return g.Origin.Z
	}
	return g.SurfaceZ(x, y)
}

func (g *GridOracle) cellOf(p Vec3) (cx, cy int, ok bool) {
	if g.CellSize <= 0 || len(g.Walkable) == 0 {
		return 0, 0, false
	}
	cx = int((p.X - g.Origin.X) / g.CellSize)
	cy = int((p.Y - g.Origin.Y) / g.CellSize)
	if p.X < g.Origin.X || p.Y < g.Origin.Y || cy >= len(g.Walkable) || cx >= len(g.Walkable[cy]) {
		return 0, 0, false
	}
	return cx, cy, true
}

func (g *GridOracle) cellCenter(cx, cy int) Vec3 {
	x := g.Origin.X + (float64(cx)+0.5)*g.CellSize
	y := g.Origin.Y + (float64(cy)+0.5)*g.CellSize
	return Vec3{X: x, Y: y, Z: g.surfaceZ(x, y)}
}

// components labels each walkable cell with its 4-connected component,
// computed once on first use.
func (g *GridOracle) components() [][]int {
	g.once.Do(func() {
		g.labels = make([][]int, len(g.Walkable))
		for y := range g.Walkable {
			g.labels[y] = make([]int, len(g.Walkable[y]))
			for x := range g.labels[y] {
				g.labels[y][x] = -1
			}
		}
		next := 0
		for y := range g.Walkable {
			for x := range g.Walkable[y] {
				if !g.Walkable[y][x] || g.labels[y][x] >= 0 {
					continue
				}
				g.floodFill(x, y, next)
				next++
			}
		}
	})
	return g.labels
}

func (g *GridOracle) floodFill(x, y, label int) {
	queue := [][2]int{{x, y}}
	g.labels[y][x] = label
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := c[0]+d[0], c[1]+d[1]
			if ny < 0 || ny >= len(g.Walkable) || nx < 0 || nx >= len(g.Walkable[ny]) {
				continue
			}
			if !g.Walkable[ny][nx] || g.labels[ny][nx] >= 0 {
				continue
			}
			g.labels[ny][nx] = label
			queue = append(queue, [2]int{nx, ny})
		}
	}
}

func (g *GridOracle) ProjectToSurface(p Vec3) (Vec3, bool, error) {
	if g.Unbaked {
		return Vec3{}, false, fmt.Errorf("projecting (%.1f, %.1f): %w", p.X, p.Y, ErrSurfaceNotBaked)
	}
	cx, cy, ok := g.cellOf(p)
	if !ok || !g.Walkable[cy][cx] {
		return Vec3{}, false, nil
	}
	return Vec3{X: p.X, Y: p.Y, Z: g.surfaceZ(p.X, p.Y)}, true, nil
}

func (g *GridOracle) GroundProbe(p Vec3, maxDist float64) (Vec3, bool, error) {
	if g.Unbaked {
		return Vec3{}, false, fmt.Errorf("ground probe at (%.1f, %.1f): %w", p.X, p.Y, ErrSurfaceNotBaked)
	}
	cx, cy, ok := g.cellOf(p)
	if !ok || !g.Walkable[cy][cx] {
		return Vec3{}, false, nil
	}
	z := g.surfaceZ(p.X, p.Y)
	if d := p.Z - z; d < -1e-6 || d > maxDist {
		return Vec3{}, false, nil
	}
	return Vec3{X: p.X, Y: p.Y, Z: z}, true, nil
}

func (g *GridOracle) PathExists(a, b Vec3) (bool, error) {
	if g.Unbaked {
		return false, fmt.Errorf("reachability query: %w", ErrSurfaceNotBaked)
	}
	ax, ay, okA := g.cellOf(a)
	bx, by, okB := g.cellOf(b)
	if !okA || !okB || !g.Walkable[ay][ax] || !g.Walkable[by][bx] {
		return false, nil
	}
	labels := g.components()
	return labels[ay][ax] == labels[by][bx], nil
}

// FindPath runs a breadth-first search over walkable cells and returns the
// corridor of cell centers bracketed by the exact endpoints.
func (g *GridOracle) FindPath(a, b Vec3) ([]Vec3, bool, error) {
	reachable, err := g.PathExists(a, b)
	if err != nil {
		return nil, false, err
	}
	if !reachable {
		return nil, false, nil
	}
	ax, ay, _ := g.cellOf(a)
	bx, by, _ := g.cellOf(b)

	prev := map[[2]int][2]int{}
	seen := map[[2]int]bool{{ax, ay}: true}
	queue := [][2]int{{ax, ay}}
	for len(queue) > 0 && !seen[[2]int{bx, by}] {
		c := queue[0]
		queue = queue[1:]
		for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			n := [2]int{c[0] + d[0], c[1] + d[1]}
			if n[1] < 0 || n[1] >= len(g.Walkable) || n[0] < 0 || n[0] >= len(g.Walkable[n[1]]) {
				continue
			}
			if !g.Walkable[n[1]][n[0]] || seen[n] {
				continue
			}
			seen[n] = true
			prev[n] = c
			queue = append(queue, n)
		}
	}

	cells := [][2]int{{bx, by}}
	for cells[len(cells)-1] != [2]int{ax, ay} {
		cells = append(cells, prev[cells[len(cells)-1]])
	}

	poly := []Vec3{{X: a.X, Y: a.Y, Z: g.surfaceZ(a.X, a.Y)}}
	for i := len(cells) - 2; i > 0; i-- {
		poly = append(poly, g.cellCenter(cells[i][0], cells[i][1]))
	}
	poly = append(poly, Vec3{X: b.X, Y: b.Y, Z: g.surfaceZ(b.X, b.Y)})
	return poly, true, nil
}

// FindReachablePoint returns the reachable cell center within radius of
// origin that lies farthest from it, preferring lower cell coordinates on
// ties so the result is deterministic.
func (g *GridOracle) FindReachablePoint(origin Vec3, radius float64) (Vec3, bool, error) {
	if g.Unbaked {
		return Vec3{}, false, fmt.Errorf("reachable point query: %w", ErrSurfaceNotBaked)
	}
	ox, oy, ok := g.cellOf(origin)
	if !ok || !g.Walkable[oy][ox] {
		return Vec3{}, false, nil
	}
	labels := g.components()
	label := labels[oy][ox]

	best := Vec3{}
	bestDist := -1.0
	found := false
	for cy := range g.Walkable {
		for cx := range g.Walkable[cy] {
			if !g.Walkable[cy][cx] || labels[cy][cx] != label {
				continue
			}
			center := g.cellCenter(cx, cy)
			d := origin.DistXY(center)
			if d > radius {
				continue
			}
			if d > bestDist {
				best, bestDist, found = center, d, true
			}
		}
	}
	if !found {
		return Vec3{}, false, nil
	}
	return best, true, nil
}
