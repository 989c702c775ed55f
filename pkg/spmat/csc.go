package spmat

import "sort"

// Triplet is a COO (row, col, value) accumulator for complex sparse
// matrices. Building Ybus/Yseries/Yf/Yt by repeated index-assignment
// into a CSC matrix directly would force an O(nnz) shift on every insert;
// pkg/compile instead accumulates each into a Triplet per branch/bus and
// calls Freeze exactly once per matrix and NumericCircuit.
type Triplet struct {
	Rows, Cols int
	r, c       []int
	v          []complex128
}

// NewTriplet returns an accumulator for a rows x cols matrix.
func NewTriplet(rows, cols int) *Triplet {
	return &Triplet{Rows: rows, Cols: cols}
}

// Add accumulates value at (row, col), 0-based. Repeated adds at the same
// coordinate sum, matching standard COO-to-CSC semantics.
func (t *Triplet) Add(row, col int, value complex128) {
	if value == 0 {
		return
	}
	t.r = append(t.r, row)
	t.c = append(t.c, col)
	t.v = append(t.v, value)
}

// Freeze converts the accumulated triplets into a CSC matrix, summing
// duplicate coordinates.
func (t *Triplet) Freeze() *CSC {
	n := len(t.r)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if t.c[ia] != t.c[ib] {
			return t.c[ia] < t.c[ib]
		}
		return t.r[ia] < t.r[ib]
	})

	colPtr := make([]int, t.Cols+1)
	rowIdx := make([]int, 0, n)
	val := make([]complex128, 0, n)

	k := 0
	for col := 0; col < t.Cols; col++ {
		colPtr[col] = len(rowIdx)
		for k < n && t.c[order[k]] == col {
			row := t.r[order[k]]
			sum := t.v[order[k]]
			k++
			for k < n && t.c[order[k]] == col && t.r[order[k]] == row {
				sum += t.v[order[k]]
				k++
			}
			rowIdx = append(rowIdx, row)
			val = append(val, sum)
		}
	}
	colPtr[t.Cols] = len(rowIdx)

	return &CSC{Rows: t.Rows, Cols: t.Cols, ColPtr: colPtr, RowIdx: rowIdx, Val: val}
}

// CSC is a compressed-sparse-column complex matrix, read-only once built.
type CSC struct {
	Rows, Cols int
	ColPtr     []int // length Cols+1
	RowIdx     []int // length nnz
	Val        []complex128
}

// At returns the value at (row, col), 0 if absent. O(log nnz-in-column).
func (m *CSC) At(row, col int) complex128 {
	if col < 0 || col >= m.Cols {
		return 0
	}
	start, end := m.ColPtr[col], m.ColPtr[col+1]
	lo, hi := start, end
	for lo < hi {
		mid := (lo + hi) / 2
		if m.RowIdx[mid] < row {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < end && m.RowIdx[lo] == row {
		return m.Val[lo]
	}
	return 0
}

// MatVec returns A*x.
func (m *CSC) MatVec(x []complex128) []complex128 {
	y := make([]complex128, m.Rows)
	for col := 0; col < m.Cols; col++ {
		xc := x[col]
		if xc == 0 {
			continue
		}
		for k := m.ColPtr[col]; k < m.ColPtr[col+1]; k++ {
			y[m.RowIdx[k]] += m.Val[k] * xc
		}
	}
	return y
}

// NNZ reports the number of stored (possibly-zero after cancellation)
// entries.
func (m *CSC) NNZ() int { return len(m.Val) }

// Hstack concatenates matrices with the same row count side by side,
// producing Rows x sum(Cols).
func Hstack(mats ...*CSC) *CSC {
	if len(mats) == 0 {
		return &CSC{ColPtr: []int{0}}
	}
	rows := mats[0].Rows
	totalCols := 0
	for _, m := range mats {
		totalCols += m.Cols
	}
	colPtr := make([]int, totalCols+1)
	var rowIdx []int
	var val []complex128

	col := 0
	for _, m := range mats {
		for c := 0; c < m.Cols; c++ {
			colPtr[col] = len(rowIdx)
			for k := m.ColPtr[c]; k < m.ColPtr[c+1]; k++ {
				rowIdx = append(rowIdx, m.RowIdx[k])
				val = append(val, m.Val[k])
			}
			col++
		}
	}
	colPtr[totalCols] = len(rowIdx)
	return &CSC{Rows: rows, Cols: totalCols, ColPtr: colPtr, RowIdx: rowIdx, Val: val}
}

// Vstack concatenates matrices with the same column count on top of each
// other, producing sum(Rows) x Cols.
func Vstack(mats ...*CSC) *CSC {
	if len(mats) == 0 {
		return &CSC{ColPtr: []int{0}}
	}
	cols := mats[0].Cols
	totalRows := 0
	for _, m := range mats {
		totalRows += m.Rows
	}
	colPtr := make([]int, cols+1)
	var rowIdx []int
	var val []complex128

	for c := 0; c < cols; c++ {
		colPtr[c] = len(rowIdx)
		rowOffset := 0
		for _, m := range mats {
			for k := m.ColPtr[c]; k < m.ColPtr[c+1]; k++ {
				rowIdx = append(rowIdx, m.RowIdx[k]+rowOffset)
				val = append(val, m.Val[k])
			}
			rowOffset += m.Rows
		}
	}
	colPtr[cols] = len(rowIdx)
	return &CSC{Rows: totalRows, Cols: cols, ColPtr: colPtr, RowIdx: rowIdx, Val: val}
}
