// Package heat solves steady-state heat diffusion on a rectangular plate
// with a four-point stencil. Each iteration has two phases, compute
// deltas and apply deltas, which the parallel solver separates with two
// barriers.
package heat

import (
	"bufio"
	"io"
	"math"
	"strconv"

	"github.com/cespare/xxhash"
)

// Temperatures in kelvin.
const (
	Freezing = 273.0
	Boiling  = 373.0
)

// Plate is a rows x cols temperature grid plus its per-cell deltas.
// Cells outside the grid follow fixed boundary conditions: the top and
// left edges are freezing, the right and bottom edges are heated in a
// linear ramp that reaches boiling at the far corner.
type Plate struct {
	rows, cols int
	temp       []float64
	delta      []float64
}

// NewPlate returns a plate with every cell at Freezing.
func NewPlate(rows, cols int) *Plate {
	p := &Plate{
		rows:  rows,
		cols:  cols,
		temp:  make([]float64, rows*cols),
		delta: make([]float64, rows*cols),
	}
	for i := range p.temp {
		p.temp[i] = Freezing
		p.delta[i] = Freezing
	}
	return p
}

func (p *Plate) Rows() int { return p.rows }
func (p *Plate) Cols() int { return p.cols }

// At returns the temperature at (r, c), which may lie one cell outside
// the grid on any side.
func (p *Plate) At(r, c int) float64 {
	if r < 0 || c < 0 {
		return Freezing
	}
	if c >= p.cols {
		return Freezing + (Boiling-Freezing)*(float64(r)/float64(p.rows-1))
	}
	if r >= p.rows {
		return Freezing + (Boiling-Freezing)*(float64(c)/float64(p.cols-1))
	}
	return p.temp[r*p.cols+c]
}

// Values returns a copy of the grid in row-major order.
func (p *Plate) Values() []float64 {
	return append([]float64(nil), p.temp...)
}

// computeDeltas fills the delta of every cell in rows [begin, end).
func (p *Plate) computeDeltas(begin, end int) {
	for i := begin; i < end; i++ {
		row := p.delta[i*p.cols : (i+1)*p.cols]
		for j := range row {
			row[j] = (p.At(i-1, j)+p.At(i+1, j)+p.At(i, j-1)+p.At(i, j+1))/4.0 - p.At(i, j)
		}
	}
}

// applyDeltas adds the stored deltas to rows [begin, end).
func (p *Plate) applyDeltas(begin, end int) {
	lo, hi := begin*p.cols, end*p.cols
	for i := lo; i < hi; i++ {
		p.temp[i] += p.delta[i]
	}
}

// Residual returns the largest absolute change one more iteration would
// make. It does not modify the plate.
func (p *Plate) Residual() float64 {
	var worst float64
	for i := 0; i < p.rows; i++ {
		for j := 0; j < p.cols; j++ {
			d := (p.At(i-1, j)+p.At(i+1, j)+p.At(i, j-1)+p.At(i, j+1))/4.0 - p.At(i, j)
			worst = math.Max(worst, math.Abs(d))
		}
	}
	return worst
}

// WriteTo renders the grid as text, one line per row, each cell printed
// with six decimals and followed by a space.
func (p *Plate) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	var buf []byte
	for i := 0; i < p.rows; i++ {
		for j := 0; j < p.cols; j++ {
			buf = strconv.AppendFloat(buf[:0], p.temp[i*p.cols+j], 'f', 6, 64)
			buf = append(buf, ' ')
			m, err := bw.Write(buf)
			n += int64(m)
			if err != nil {
				return n, err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return n, err
		}
		n++
	}
	return n, bw.Flush()
}

// Digest returns the xxhash of the plate's WriteTo rendering. Two plates
// with equal digests print identically.
func (p *Plate) Digest() uint64 {
	h := xxhash.New()
	p.WriteTo(h)
	return h.Sum64()
}
