package spiceengine

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
)

// Newton-Raphson convergence controls.
const (
	abstol  = 1e-12
	reltol  = 1e-6
	maxIter = 100
)

// errHalted aborts a run between NR iterations after bg_halt.
var errHalted = errors.New("run halted")

// solveOP computes the DC operating point: a plain NR solve first, then gmin
// stepping when the circuit refuses to converge cold.
func (c *circuit) solveOP(halted *atomic.Bool) ([]float64, error) {
	c.resetStates()

	solution, err := c.nrIter(0, halted)
	if err == nil {
		return solution, nil
	}
	if errors.Is(err, errHalted) {
		return nil, errHalted
	}

	const gminSteps = 10
	startGmin := float64(c.size()) * 0.001
	gmin := startGmin * math.Pow(10, gminSteps)
	for i := 0; i <= gminSteps; i++ {
		if _, err := c.nrIter(gmin, halted); err != nil {
			if errors.Is(err, errHalted) {
				return nil, errHalted
			}
			return nil, fmt.Errorf("gmin stepping failed at %g: %v", gmin, err)
		}
		gmin /= 10
	}

	solution, err = c.nrIter(0, halted)
	if err != nil {
		if errors.Is(err, errHalted) {
			return nil, errHalted
		}
		return nil, fmt.Errorf("final solve failed with zero gmin: %v", err)
	}
	return solution, nil
}

// resetStates seeds the junction guesses near the turn-on knee, the usual
// SPICE starting point.
func (c *circuit) resetStates() {
	for _, d := range c.devices {
		switch d.kind {
		case kindDiode:
			d.vd = 0.6
		case kindBJT:
			d.vbe = 0.6
			d.vbc = 0
		}
	}
}

func (c *circuit) nrIter(gmin float64, halted *atomic.Bool) ([]float64, error) {
	n := c.size()
	if n == 0 {
		return nil, fmt.Errorf("circuit has no unknowns")
	}

	var old []float64
	for iter := 0; iter < maxIter; iter++ {
		if halted.Load() {
			return nil, errHalted
		}

		a := mat.NewDense(n, n, nil)
		b := mat.NewVecDense(n, nil)

		if iter > 0 {
			c.updateNonlinear(old)
		}
		c.stamp(a, b)
		for k := 0; k < c.maxNode; k++ {
			a.Set(k, k, a.At(k, k)+gmin)
		}

		var lu mat.LU
		lu.Factorize(a)
		x := mat.NewVecDense(n, nil)
		if err := lu.SolveVecTo(x, false, b); err != nil {
			return nil, fmt.Errorf("singular matrix: %v", err)
		}

		solution := make([]float64, n)
		for k := 0; k < n; k++ {
			solution[k] = x.AtVec(k)
		}

		if iter > 0 && converged(solution, old) {
			// Leave the junction states consistent with the answer.
			c.updateNonlinear(solution)
			return solution, nil
		}
		if old == nil {
			old = make([]float64, n)
		}
		copy(old, solution)
	}
	return nil, fmt.Errorf("no convergence in %d iterations", maxIter)
}

func converged(solution, old []float64) bool {
	for i := range solution {
		diff := math.Abs(solution[i] - old[i])
		tol := reltol*math.Max(math.Abs(solution[i]), math.Abs(old[i])) + abstol
		if diff > tol {
			return false
		}
	}
	return true
}

// resultVectors builds the vector table from a converged solution using the
// conventional names: v(N) per node, @name[i] for linear elements,
// @name[id] for diodes, @name[ib]/[ic]/[ie] for BJTs and @name[p] for the
// dissipated power of every element.
func (c *circuit) resultVectors(solution []float64) map[string]float64 {
	vectors := make(map[string]float64, 2*len(c.devices)+c.maxNode)
	for k := 1; k <= c.maxNode; k++ {
		vectors[fmt.Sprintf("v(%d)", k)] = c.nodeVoltage(solution, k)
	}

	for _, d := range c.devices {
		switch d.kind {
		case kindResistor:
			v := c.across(solution, d)
			i := v / d.value
			vectors["@"+d.name+"[i]"] = i
			vectors["@"+d.name+"[p]"] = v * i

		case kindCapacitor:
			vectors["@"+d.name+"[i]"] = 0
			vectors["@"+d.name+"[p]"] = 0

		case kindInductor:
			vectors["@"+d.name+"[i]"] = solution[c.branchRow(d)]
			vectors["@"+d.name+"[p]"] = 0

		case kindVSource, kindVCVS:
			i := solution[c.branchRow(d)]
			vectors["@"+d.name+"[i]"] = i
			vectors["@"+d.name+"[p]"] = c.across(solution, d) * i

		case kindISource:
			vectors["@"+d.name+"[i]"] = d.value
			vectors["@"+d.name+"[p]"] = c.across(solution, d) * d.value

		case kindVCCS:
			i := d.value * (c.nodeVoltage(solution, d.nodes[2]) - c.nodeVoltage(solution, d.nodes[3]))
			vectors["@"+d.name+"[i]"] = i
			vectors["@"+d.name+"[p]"] = c.across(solution, d) * i

		case kindDiode:
			id, _ := diodeEval(d.model, d.vd)
			vectors["@"+d.name+"[id]"] = id
			vectors["@"+d.name+"[p]"] = d.vd * id

		case kindBJT:
			sign := 1.0
			if d.model.pnp {
				sign = -1.0
			}
			ic0, ib0, _, _, _, _ := bjtEval(d.model, d.vbe, d.vbc)
			ic := sign * ic0
			ib := sign * ib0
			ie := -(ic + ib)
			vectors["@"+d.name+"[ic]"] = ic
			vectors["@"+d.name+"[ib]"] = ib
			vectors["@"+d.name+"[ie]"] = ie

			vc := c.nodeVoltage(solution, d.nodes[0])
			vb := c.nodeVoltage(solution, d.nodes[1])
			ve := c.nodeVoltage(solution, d.nodes[2])
			vectors["@"+d.name+"[p]"] = vc*ic + vb*ib + ve*ie
		}
	}
	return vectors
}

// across is the voltage from the element's first node to its second.
func (c *circuit) across(solution []float64, d *device) float64 {
	return c.nodeVoltage(solution, d.nodes[0]) - c.nodeVoltage(solution, d.nodes[1])
}
