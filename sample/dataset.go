package sample

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dataset is a flat collection of training samples, one row
// [x (dimX) | z (dimZ)] per sample.
type Dataset struct {
	Data *mat.Dense
	DimX int
	DimZ int
}

// Len returns the number of samples.
func (d Dataset) Len() int {
	if d.Data == nil {
		return 0
	}
	r, _ := d.Data.Dims()
	return r
}

// X returns a view of the state columns.
func (d Dataset) X() *mat.Dense {
	r, _ := d.Data.Dims()
	return d.Data.Slice(0, r, 0, d.DimX).(*mat.Dense)
}

// Z returns a view of the observer-coordinate columns.
func (d Dataset) Z() *mat.Dense {
	r, _ := d.Data.Dims()
	return d.Data.Slice(0, r, d.DimX, d.DimX+d.DimZ).(*mat.Dense)
}

// Row returns the x and z parts of sample i.
func (d Dataset) Row(i int) (mat.Vector, mat.Vector) {
	row := d.Data.RowView(i).(*mat.VecDense)
	return row.SliceVec(0, d.DimX), row.SliceVec(d.DimX, d.DimX+d.DimZ)
}

// Subset returns a dataset holding copies of the given rows.
func (d Dataset) Subset(rows []int) Dataset {
	_, c := d.Data.Dims()
	data := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		data.SetRow(i, rawRow(d.Data, r))
	}
	return Dataset{Data: data, DimX: d.DimX, DimZ: d.DimZ}
}

// Split partitions the dataset into training and validation subsets with
// valFrac of the samples held out. Shuffling must stay off for
// trajectory-structured data to preserve time ordering.
func (d Dataset) Split(rng *rand.Rand, valFrac float64, shuffle bool) (Dataset, Dataset) {
	n := d.Len()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if shuffle {
		rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}
	nVal := int(float64(n) * valFrac)
	if nVal < 1 && n > 1 {
		nVal = 1
	}
	return d.Subset(idx[:n-nVal]), d.Subset(idx[n-nVal:])
}

// Trajectory is a time-ordered segment of joint states.
type Trajectory struct {
	Ts   []float64
	Data *mat.Dense // rows aligned with Ts, cols [x | z]
}

// TrajectorySet is a collection of trajectories; ordering within each
// trajectory is significant, ordering across trajectories is not.
type TrajectorySet struct {
	Trajs []Trajectory
	DimX  int
	DimZ  int
}

// Flatten stacks all trajectories into a flat sample collection.
func (s TrajectorySet) Flatten() Dataset {
	total := 0
	for _, tr := range s.Trajs {
		r, _ := tr.Data.Dims()
		total += r
	}
	data := mat.NewDense(total, s.DimX+s.DimZ, nil)
	at := 0
	for _, tr := range s.Trajs {
		r, _ := tr.Data.Dims()
		for i := 0; i < r; i++ {
			data.SetRow(at, rawRow(tr.Data, i))
			at++
		}
	}
	return Dataset{Data: data, DimX: s.DimX, DimZ: s.DimZ}
}

// Concat appends the samples of other to d; both must share the layout.
func (d Dataset) Concat(other Dataset) Dataset {
	if d.Data == nil {
		return other
	}
	r1, c := d.Data.Dims()
	r2, _ := other.Data.Dims()
	data := mat.NewDense(r1+r2, c, nil)
	for i := 0; i < r1; i++ {
		data.SetRow(i, rawRow(d.Data, i))
	}
	for i := 0; i < r2; i++ {
		data.SetRow(r1+i, rawRow(other.Data, i))
	}
	return Dataset{Data: data, DimX: d.DimX, DimZ: d.DimZ}
}

func rawRow(m *mat.Dense, i int) []float64 {
	_, c := m.Dims()
	row := make([]float64, c)
	mat.Row(row, i, m)
	return row
}
