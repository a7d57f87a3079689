package portfolio

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/riskmodel"
	"github.com/wonny/longshort/pkg/logger"
)

const (
	// invariantTol bounds numerical slack when checking a solved portfolio
	invariantTol = 1e-6
	// rankTol decides when a homogeneous row adds nothing new
	rankTol = 1e-9
	// dustWeight drops weights the solver leaves at numerical zero
	dustWeight = 1e-9
)

// Constructor turns long/short candidates into target weights by solving
//
//	maximize Σ wᵢ·scoreᵢ
//
// under gross leverage, dollar neutrality, position bounds and optional
// risk-factor exposure limits.
// ⭐ SSOT: 목표 비중 산출은 여기서만
type Constructor struct {
	constraints Constraints
	schema      *riskmodel.Schema
	solver      Solver
	logger      *logger.Logger
}

// NewConstructor creates a constructor; a nil solver uses the embedded simplex solver
func NewConstructor(constraints Constraints, solver Solver, log *logger.Logger) (*Constructor, error) {
	if solver == nil {
		solver = NewSimplexSolver()
	}

	c := &Constructor{
		constraints: constraints,
		solver:      solver,
		logger:      log.WithComponent("portfolio_constructor"),
	}

	if constraints.Risk.Enabled {
		schema, err := riskmodel.Lookup(constraints.Risk.ModelVersion)
		if err != nil {
			return nil, err
		}
		c.schema = &schema
	}

	return c, nil
}

// Constraints returns the active constraint set
func (c *Constructor) Constraints() Constraints {
	return c.constraints
}

// RiskEnabled reports whether Construct needs risk loadings
func (c *Constructor) RiskEnabled() bool {
	return c.schema != nil
}

// RiskModelVersion returns the schema version loadings must follow
func (c *Constructor) RiskModelVersion() int {
	return c.constraints.Risk.ModelVersion
}

// candidate is one decision variable: weight = sign · v, v ≥ 0
type candidate struct {
	symbol string
	score  float64
	sign   float64
	cap    float64
}

// Construct solves for the target portfolio of the selection.
// loadings is required when risk neutralization is enabled and ignored otherwise.
// Returns contracts.ErrInfeasible when only the empty portfolio (or nothing) fits.
func (c *Constructor) Construct(ctx context.Context, sel *contracts.Selection, loadings *contracts.RiskLoadings) (*contracts.TargetPortfolio, error) {
	if err := c.constraints.Check(); err != nil {
		return nil, err
	}
	if sel.Count() == 0 {
		return nil, fmt.Errorf("%w: no long or short candidates", contracts.ErrInfeasible)
	}

	cands := make([]candidate, 0, sel.Count())
	for _, rs := range sel.Candidates() {
		cands = append(cands, candidate{
			symbol: rs.Symbol,
			score:  rs.Score,
			sign:   rs.Side.Sign(),
			cap:    c.constraints.positionCap(rs.Side),
		})
	}

	riskRows, err := c.riskRows(cands, loadings)
	if err != nil {
		return nil, err
	}

	prog, err := c.program(cands, riskRows)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"date":        sel.Date.Format("2006-01-02"),
		"longs":       len(sel.Longs),
		"shorts":      len(sel.Shorts),
		"constraints": len(prog.rows),
		"risk":        c.RiskEnabled(),
	}).Info("Solving portfolio")

	n := len(cands)
	objective := make([]float64, n)
	for i, cd := range cands {
		objective[i] = -cd.sign * cd.score
	}

	v, err := c.solver.Solve(ctx, prog.build(objective))
	if err != nil {
		return nil, err
	}

	if floats.Sum(v[:n]) <= dustWeight {
		// 점수 차이가 없으면 최적해가 0일 수 있음: 노출이 가능한지 따로 확인
		fallback := make([]float64, n)
		for i := range fallback {
			fallback[i] = -1
		}
		v, err = c.solver.Solve(ctx, prog.build(fallback))
		if err != nil {
			return nil, err
		}
		if floats.Sum(v[:n]) <= dustWeight {
			return nil, fmt.Errorf("%w: only the empty portfolio satisfies the constraints", contracts.ErrInfeasible)
		}
	}

	target := &contracts.TargetPortfolio{
		Date:      sel.Date,
		Positions: make([]contracts.TargetPosition, 0, n),
	}
	for i, cd := range cands {
		if v[i] <= dustWeight {
			continue
		}
		w := cd.sign * v[i]
		target.Positions = append(target.Positions, contracts.TargetPosition{
			Symbol: cd.symbol,
			Weight: w,
			Score:  cd.score,
		})
		target.Objective += w * cd.score
	}
	target.SortPositions()

	if err := c.checkInvariants(target, cands, riskRows); err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"positions": target.Count(),
		"gross":     target.GrossExposure(),
		"net":       target.NetExposure(),
		"objective": target.Objective,
	}).Info("Portfolio constructed")

	return target, nil
}

// riskRow is Σ wᵢ·lᵢₖ expressed over the decision variables
type riskRow struct {
	factor string
	coef   []float64
	bound  float64
}

func (c *Constructor) riskRows(cands []candidate, loadings *contracts.RiskLoadings) ([]riskRow, error) {
	if c.schema == nil {
		return nil, nil
	}
	if loadings == nil {
		return nil, fmt.Errorf("%w: risk loadings required for model version %d", contracts.ErrDataUnavailable, c.schema.Version)
	}
	if loadings.Version != c.schema.Version {
		return nil, fmt.Errorf("%w: risk loadings version %d, want %d", contracts.ErrDataUnavailable, loadings.Version, c.schema.Version)
	}

	column := make(map[string]int, len(loadings.Factors))
	for k, name := range loadings.Factors {
		column[name] = k
	}

	missing := make([]string, 0)
	for _, cd := range cands {
		if _, ok := loadings.Loadings[cd.symbol]; !ok {
			missing = append(missing, cd.symbol)
		}
	}
	if len(missing) > 0 {
		c.logger.WithField("symbols", missing).Warn("Missing risk loadings, treating as zero exposure")
	}

	rows := make([]riskRow, 0, len(c.schema.Factors))
	for _, f := range c.schema.Factors {
		row := riskRow{factor: f.Name, coef: make([]float64, len(cands))}
		if f.Group == riskmodel.GroupSector {
			row.bound = c.constraints.Risk.SectorExposureMax
		} else {
			row.bound = c.constraints.Risk.StyleExposureMax
		}

		k, ok := column[f.Name]
		if ok {
			for i, cd := range cands {
				if l, ok := loadings.Exposure(cd.symbol, k); ok {
					row.coef[i] = cd.sign * l
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// program assembles the LP. Homogeneous equality rows (dollar neutrality and
// exact risk neutralization) are reduced to an independent set first.
func (c *Constructor) program(cands []candidate, riskRows []riskRow) (*programBuilder, error) {
	n := len(cands)
	b := newProgramBuilder(n)

	signs := make([]float64, n)
	ones := make([]float64, n)
	for i, cd := range cands {
		signs[i] = cd.sign
		ones[i] = 1
	}

	homogeneous := [][]float64{signs}
	for _, r := range riskRows {
		if r.bound == 0 {
			homogeneous = append(homogeneous, r.coef)
		}
	}
	independent := independentRows(homogeneous, rankTol)
	if len(independent) >= n {
		return nil, fmt.Errorf("%w: %d neutrality constraints pin all %d candidates to zero", contracts.ErrInfeasible, len(independent), n)
	}
	for _, row := range independent {
		b.equal(row, 0)
	}

	b.lessEqual(ones, c.constraints.MaxGrossLeverage)
	if c.constraints.MinGrossLeverage > 0 {
		b.greaterEqual(ones, c.constraints.MinGrossLeverage)
	}

	for i, cd := range cands {
		unit := make([]float64, n)
		unit[i] = 1
		b.lessEqual(unit, cd.cap)
	}

	for _, r := range riskRows {
		if r.bound == 0 || floats.Norm(r.coef, 2) == 0 {
			continue
		}
		neg := make([]float64, n)
		floats.ScaleTo(neg, -1, r.coef)
		b.lessEqual(r.coef, r.bound)
		b.lessEqual(neg, r.bound)
	}

	return b, nil
}

// independentRows keeps the rows that are linearly independent of the ones
// before them (Gram-Schmidt). All-zero rows are dropped.
func independentRows(rows [][]float64, tol float64) [][]float64 {
	basis := make([][]float64, 0, len(rows))
	kept := make([][]float64, 0, len(rows))

	for _, row := range rows {
		scale := floats.Norm(row, 2)
		if scale == 0 {
			continue
		}

		v := make([]float64, len(row))
		copy(v, row)
		for _, q := range basis {
			floats.AddScaled(v, -floats.Dot(v, q), q)
		}

		norm := floats.Norm(v, 2)
		if norm <= tol*scale {
			continue
		}
		floats.Scale(1/norm, v)
		basis = append(basis, v)
		kept = append(kept, row)
	}
	return kept
}

// checkInvariants verifies the solved portfolio against every constraint
func (c *Constructor) checkInvariants(target *contracts.TargetPortfolio, cands []candidate, riskRows []riskRow) error {
	cons := c.constraints

	if gross := target.GrossExposure(); gross > cons.MaxGrossLeverage+invariantTol {
		return fmt.Errorf("%w: gross exposure %.6f exceeds %.6f", contracts.ErrSolver, gross, cons.MaxGrossLeverage)
	} else if gross < cons.MinGrossLeverage-invariantTol {
		return fmt.Errorf("%w: gross exposure %.6f below %.6f", contracts.ErrSolver, gross, cons.MinGrossLeverage)
	}

	if net := target.NetExposure(); math.Abs(net) > invariantTol {
		return fmt.Errorf("%w: net exposure %.6f is not dollar neutral", contracts.ErrSolver, net)
	}

	for _, pos := range target.Positions {
		if pos.Weight > cons.MaxLongPositionSize+invariantTol {
			return fmt.Errorf("%w: long %s weight %.6f exceeds %.6f", contracts.ErrSolver, pos.Symbol, pos.Weight, cons.MaxLongPositionSize)
		}
		if pos.Weight < -cons.MaxShortPositionSize-invariantTol {
			return fmt.Errorf("%w: short %s weight %.6f exceeds %.6f", contracts.ErrSolver, pos.Symbol, pos.Weight, -cons.MaxShortPositionSize)
		}
	}

	if len(riskRows) == 0 {
		return nil
	}
	weights := target.Weights()
	for _, r := range riskRows {
		exposure := 0.0
		for i, cd := range cands {
			// coef already carries the side sign; |w| = v
			exposure += r.coef[i] * math.Abs(weights[cd.symbol])
		}
		if math.Abs(exposure) > r.bound+invariantTol {
			return fmt.Errorf("%w: %s exposure %.6f exceeds %.6f", contracts.ErrSolver, r.factor, exposure, r.bound)
		}
	}
	return nil
}
