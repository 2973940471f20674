package nn

import (
	"bytes"
	"encoding/gob"

	"gonum.org/v1/gonum/mat"
)

// networkWire is the gob wire representation of a Network.
type networkWire struct {
	Sizes []int
	Act   Activation
	W     [][]float64
	B     [][]float64
}

// GobEncode implements gob.GobEncoder so networks can be embedded in
// checkpoint artifacts.
func (n *Network) GobEncode() ([]byte, error) {
	w := networkWire{Sizes: n.sizes, Act: n.act}
	for l := range n.W {
		raw := n.W[l].RawMatrix()
		data := make([]float64, len(raw.Data))
		copy(data, raw.Data)
		w.W = append(w.W, data)
		braw := n.B[l].RawVector()
		bdata := make([]float64, len(braw.Data))
		copy(bdata, braw.Data)
		w.B = append(w.B, bdata)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (n *Network) GobDecode(data []byte) error {
	var w networkWire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return err
	}
	n.sizes = w.Sizes
	n.act = w.Act
	n.W = n.W[:0]
	n.B = n.B[:0]
	for l := 0; l+1 < len(w.Sizes); l++ {
		n.W = append(n.W, mat.NewDense(w.Sizes[l+1], w.Sizes[l], w.W[l]))
		n.B = append(n.B, mat.NewVecDense(w.Sizes[l+1], w.B[l]))
	}
	return nil
}
