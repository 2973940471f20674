package evaluate

import (
	"encoding/csv"
	"io"
	"log"
	"strconv"

	kkl "github.com/monabf/learn-observe-KKL"
	"gonum.org/v1/gonum/mat"
)

// ReadHardwareCSV parses experimental measurement rows of the form
//
//	index, field_1, ..., field_n, timestamp
//
// into a time vector and a state matrix (one row per record). The first
// valid row's timestamp becomes t = 0. When the system implements
// kkl.HardwareRemapper, every row is remapped into the modeling
// convention. Malformed rows are skipped and counted, not fatal.
func ReadHardwareCSV(r io.Reader, sys kkl.System) ([]float64, *mat.Dense, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	remapper, _ := sys.(kkl.HardwareRemapper)

	var (
		ts      []float64
		rows    [][]float64
		t0      float64
		started bool
		skipped int
		fields  = -1
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if len(record) < 3 {
			skipped++
			continue
		}
		vals, ok := parseFloats(record)
		if !ok {
			// Header or corrupted line.
			skipped++
			continue
		}

		state := vals[1 : len(vals)-1]
		stamp := vals[len(vals)-1]
		if fields == -1 {
			fields = len(state)
		} else if len(state) != fields {
			skipped++
			continue
		}

		if !started {
			t0 = stamp
			started = true
		}
		if remapper != nil {
			state = remapper.RemapHardware(state)
		}
		ts = append(ts, stamp-t0)
		rows = append(rows, state)
	}
	if skipped > 0 {
		log.Printf("evaluate: skipped %d malformed hardware rows", skipped)
	}
	if len(rows) == 0 {
		return nil, nil, &kkl.ConfigError{Field: "hardware data", Reason: "no valid rows"}
	}

	data := mat.NewDense(len(rows), fields, nil)
	for i, row := range rows {
		data.SetRow(i, row)
	}
	return ts, data, nil
}

func parseFloats(record []string) ([]float64, bool) {
	vals := make([]float64, len(record))
	for i, s := range record {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}
