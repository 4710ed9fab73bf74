// Package runtime provides ModelRuntime implementations that stand in
// for a real inference engine: a deterministic fake for tests and a toy
// numeric runtime usable for demos and load generation.
package runtime

import (
	"context"
	"fmt"

	"github.com/llm-d-incubation/inference-wlm/internal/wlm"
	"gonum.org/v1/gonum/mat"
)

// MatMul is a toy ModelRuntime that treats each job's input as a
// *mat.VecDense and "infers" by multiplying it through a fixed weight
// matrix. It exists to give the executable a runnable default without
// depending on an actual model server, and to exercise gonum the way a
// real numeric runtime would.
type MatMul struct {
	Weights *mat.Dense
}

// NewMatMul builds a runtime backed by an identity weight matrix of the
// given dimension, so each output vector equals its input, without
// needing a real trained model.
func NewMatMul(dim int) *MatMul {
	w := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		w.Set(i, i, 1.0)
	}
	return &MatMul{Weights: w}
}

func (m *MatMul) OnWorkerStart(deviceID int) error { return nil }
func (m *MatMul) OnWorkerStop()                    {}

func (m *MatMul) Predict(ctx context.Context, batch []*wlm.Job) ([]wlm.Outcome, error) {
	out := make([]wlm.Outcome, len(batch))
	for i, job := range batch {
		vec, ok := job.Input.(*mat.VecDense)
		if !ok {
			out[i] = wlm.Outcome{Err: fmt.Errorf("matmul runtime: job %s input is not *mat.VecDense", job.ID)}
			continue
		}
		var result mat.VecDense
		result.MulVec(m.Weights, vec)
		out[i] = wlm.Outcome{Result: &result}
	}
	return out, nil
}
