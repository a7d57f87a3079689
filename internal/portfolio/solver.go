package portfolio

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/wonny/longshort/internal/contracts"
)

// LinearProgram is a problem in standard form:
//
//	minimize cᵀx  subject to  Ax = b, x ≥ 0
type LinearProgram struct {
	C []float64
	A *mat.Dense
	B []float64
}

// Solver is the optimization collaborator. Implementations return
// contracts.ErrInfeasible when no x satisfies the constraints.
type Solver interface {
	Solve(ctx context.Context, prog *LinearProgram) ([]float64, error)
}

// SimplexSolver solves in-process with gonum's simplex method
type SimplexSolver struct {
	Tol float64
}

// NewSimplexSolver creates a simplex solver with the default tolerance
func NewSimplexSolver() *SimplexSolver {
	return &SimplexSolver{Tol: 1e-10}
}

// Solve runs the simplex method; the call blocks until it finishes
func (s *SimplexSolver) Solve(ctx context.Context, prog *LinearProgram) (x []float64, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// gonum panics on malformed shapes
	defer func() {
		if r := recover(); r != nil {
			x, err = nil, fmt.Errorf("%w: simplex panic: %v", contracts.ErrSolver, r)
		}
	}()

	_, x, err = lp.Simplex(prog.C, prog.A, prog.B, s.Tol, nil)
	switch {
	case err == nil:
		return x, nil
	case errors.Is(err, lp.ErrInfeasible):
		return nil, fmt.Errorf("%w: %v", contracts.ErrInfeasible, err)
	default:
		return nil, fmt.Errorf("%w: %v", contracts.ErrSolver, err)
	}
}

// programBuilder accumulates linear constraints over n decision variables
// and appends one slack variable per inequality.
type programBuilder struct {
	n    int
	rows []programRow
}

type programRow struct {
	coef  []float64
	slack float64 // +1 for ≤, -1 for ≥, 0 for =
	rhs   float64
}

func newProgramBuilder(n int) *programBuilder {
	return &programBuilder{n: n}
}

func (b *programBuilder) equal(coef []float64, rhs float64) {
	b.rows = append(b.rows, programRow{coef: coef, rhs: rhs})
}

func (b *programBuilder) lessEqual(coef []float64, rhs float64) {
	b.rows = append(b.rows, programRow{coef: coef, slack: 1, rhs: rhs})
}

func (b *programBuilder) greaterEqual(coef []float64, rhs float64) {
	b.rows = append(b.rows, programRow{coef: coef, slack: -1, rhs: rhs})
}

// build lays the rows out as [decision | slacks]; objective covers decision variables only
func (b *programBuilder) build(objective []float64) *LinearProgram {
	slacks := 0
	for _, r := range b.rows {
		if r.slack != 0 {
			slacks++
		}
	}

	m, cols := len(b.rows), b.n+slacks
	A := mat.NewDense(m, cols, nil)
	rhs := make([]float64, m)

	slack := b.n
	for i, r := range b.rows {
		for j, v := range r.coef {
			A.Set(i, j, v)
		}
		if r.slack != 0 {
			A.Set(i, slack, r.slack)
			slack++
		}
		rhs[i] = r.rhs
	}

	c := make([]float64, cols)
	copy(c, objective)

	return &LinearProgram{C: c, A: A, B: rhs}
}
