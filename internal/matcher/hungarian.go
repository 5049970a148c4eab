package matcher

import "math"

// assign solves the rectangular assignment problem on weights w (rows x
// columns), maximizing the total weight. It returns, for each row, the index
// of its assigned column or -1 when the row is left out (more rows than
// columns).
//
// This is the O(n^2 m) potentials formulation of the Hungarian algorithm,
// run on negated weights.
func assign(w [][]float64) []int {
	rows := len(w)
	out := make([]int, rows)
	for i := range out {
		out[i] = -1
	}
	if rows == 0 || len(w[0]) == 0 {
		return out
	}

	transposed := false
	if rows > len(w[0]) {
		w = transpose(w)
		transposed = true
	}
	n, m := len(w), len(w[0])

	u := make([]float64, n+1)
	v := make([]float64, m+1)
	p := make([]int, m+1)   // p[j]: row (1-based) matched to column j
	way := make([]int, m+1) // augmenting path back-pointers

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, m+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		used := make([]bool, m+1)

		for {
			used[j0] = true
			i0, delta, j1 := p[j0], math.Inf(1), 0
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := -w[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	colOf := make([]int, n)
	for i := range colOf {
		colOf[i] = -1
	}
	for j := 1; j <= m; j++ {
		if p[j] != 0 {
			colOf[p[j]-1] = j - 1
		}
	}

	if !transposed {
		return colOf
	}
	// Rows of the transposed matrix are the original columns.
	for c, r := range colOf {
		if r >= 0 {
			out[r] = c
		}
	}
	return out
}

func transpose(w [][]float64) [][]float64 {
	t := make([][]float64, len(w[0]))
	for j := range t {
		t[j] = make([]float64, len(w))
		for i := range w {
			t[j][i] = w[i][j]
		}
	}
	return t
}
