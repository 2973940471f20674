package kkl

import (
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestCheckDim(t *testing.T) {
	x := mat.NewVecDense(3, nil)
	if err := CheckDim("test", x, 3); err != nil {
		t.Errorf("matching dimension rejected: %v", err)
	}
	err := CheckDim("encode", x, 2)
	if err == nil {
		t.Fatal("mismatched dimension accepted")
	}
	se, ok := err.(*ShapeError)
	if !ok {
		t.Fatalf("got %T, want *ShapeError", err)
	}
	if se.Want != 2 || se.Got != 3 {
		t.Errorf("ShapeError carries %d/%d", se.Want, se.Got)
	}
	if !strings.Contains(err.Error(), "encode") {
		t.Errorf("error message %q does not name the operation", err.Error())
	}
}

func TestErrorMessages(t *testing.T) {
	div := &DivergenceError{T: 1.5, Norm: 2e6, Bound: 1e6}
	if !strings.Contains(div.Error(), "diverged") {
		t.Errorf("unexpected message %q", div.Error())
	}
	cfg := &ConfigError{Field: "wc", Reason: "must be positive"}
	if !strings.Contains(cfg.Error(), "wc") {
		t.Errorf("unexpected message %q", cfg.Error())
	}
	conv := &ConvergenceError{Epoch: 7, Loss: 0}
	if !strings.Contains(conv.Error(), "epoch 7") {
		t.Errorf("unexpected message %q", conv.Error())
	}
}
