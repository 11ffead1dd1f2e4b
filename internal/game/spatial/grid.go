// Package spatial provides a uniform grid for broad-phase collision.
//
// The grid stores integer indices (not pointers) into the caller's slice of
// colliders, so rebuilding it every tick allocates nothing once warmed up.
package spatial

import (
	"math"
)

// Grid buckets entities on a horizontal plane. The game uses the X/Z plane:
// meteors and bullets travel mostly along Z, and the player sits near Z=0.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col]).
// Positions outside the covered area are clamped into the border cells.
type Grid struct {
	originU, originV float64
	cellSize         float64
	invCellSize      float64
	cols, rows       int
	cells            [][]uint32
	scratch          []uint32
	count            int
}

// NewGrid covers width×depth starting at (originU, originV).
// cellSize should be at least the largest collider diameter.
func NewGrid(originU, originV, width, depth, cellSize float64, maxEntities int) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(depth / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	perCell := maxEntities / len(cells)
	if perCell < 4 {
		perCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, perCell)
	}

	return &Grid{
		originU:     originU,
		originV:     originV,
		cellSize:    cellSize,
		invCellSize: 1 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
	}
}

// Clear empties every cell, keeping capacity.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.count = 0
}

func (g *Grid) col(u float64) int {
	c := int(math.Floor((u - g.originU) * g.invCellSize))
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *Grid) row(v float64) int {
	r := int(math.Floor((v - g.originV) * g.invCellSize))
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}

// Insert adds id at (u, v).
func (g *Grid) Insert(id uint32, u, v float64) {
	idx := g.row(v)*g.cols + g.col(u)
	g.cells[idx] = append(g.cells[idx], id)
	g.count++
}

// QueryRadius returns every id in the cells overlapping the square around
// (u, v). Candidates may lie outside the radius; the caller does the narrow
// phase. The returned slice is reused by the next query.
func (g *Grid) QueryRadius(u, v, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol, maxCol := g.col(u-radius), g.col(u+radius)
	minRow, maxRow := g.row(v-radius), g.row(v+radius)

	for r := minRow; r <= maxRow; r++ {
		for c := minCol; c <= maxCol; c++ {
			g.scratch = append(g.scratch, g.cells[r*g.cols+c]...)
		}
	}
	return g.scratch
}

// QueryCell returns the ids in the cell containing (u, v).
func (g *Grid) QueryCell(u, v float64) []uint32 {
	return g.cells[g.row(v)*g.cols+g.col(u)]
}

// Len returns the number of inserted ids.
func (g *Grid) Len() int { return g.count }

// Stats returns occupancy figures for debugging.
func (g *Grid) Stats() GridStats {
	var total, maxInCell, nonEmpty int
	for _, cell := range g.cells {
		n := len(cell)
		total += n
		if n > maxInCell {
			maxInCell = n
		}
		if n > 0 {
			nonEmpty++
		}
	}

	avg := 0.0
	if nonEmpty > 0 {
		avg = float64(total) / float64(nonEmpty)
	}

	return GridStats{
		TotalCells:     len(g.cells),
		NonEmptyCells:  nonEmpty,
		TotalEntities:  total,
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avg,
	}
}

// GridStats contains grid statistics for debugging.
type GridStats struct {
	TotalCells     int     `json:"totalCells"`
	NonEmptyCells  int     `json:"nonEmptyCells"`
	TotalEntities  int     `json:"totalEntities"`
	MaxInCell      int     `json:"maxInCell"`
	AvgPerNonEmpty float64 `json:"avgPerNonEmpty"`
}

// Dimensions returns the grid dimensions.
func (g *Grid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}
