package simplex

import "gonum.org/v1/gonum/floats"

// tableau 稠密单纯形表 B⁻¹[A | b]，按行主序存储在一段连续内存中。
// 每行前 cols 个元素为列系数，最后一个元素为右端项。
// 不使用 mat.Dense：零行 (无约束) 的问题同样需要合法的表。
type tableau struct {
	rows   int
	cols   int
	stride int
	data   []float64
}

func newTableau(rows, cols int) *tableau {
	return &tableau{
		rows:   rows,
		cols:   cols,
		stride: cols + 1,
		data:   make([]float64, rows*(cols+1)),
	}
}

// row 返回第 i 行 (含右端项) 的切片视图。
func (t *tableau) row(i int) []float64 {
	return t.data[i*t.stride : (i+1)*t.stride]
}

func (t *tableau) at(i, j int) float64 {
	return t.data[i*t.stride+j]
}

func (t *tableau) set(i, j int, v float64) {
	t.data[i*t.stride+j] = v
}

func (t *tableau) rhs(i int) float64 {
	return t.data[i*t.stride+t.cols]
}

// pivot 以 (r, q) 为主元做 Gauss-Jordan 消元，并同步更新约化成本行 d。
func (t *tableau) pivot(r, q int, d []float64) {
	prow := t.row(r)
	floats.Scale(1/prow[q], prow)
	prow[q] = 1

	for i := 0; i < t.rows; i++ {
		if i == r {
			continue
		}
		row := t.row(i)
		if f := row[q]; f != 0 {
			floats.AddScaled(row, -f, prow)
			row[q] = 0
		}
	}

	if f := d[q]; f != 0 {
		floats.AddScaled(d, -f, prow[:t.cols])
	}
	d[q] = 0
}
