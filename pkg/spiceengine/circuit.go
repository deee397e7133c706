package spiceengine

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Thermal voltage kT/q at the default analysis temperature (27 C).
const thermalVoltage = 0.025852

// Per-junction minimum conductance, kept even at zero stepping gmin so
// reverse-biased junctions never leave a node floating.
const junctionGmin = 1e-12

type deviceKind int

const (
	kindResistor deviceKind = iota
	kindCapacitor
	kindInductor
	kindVSource
	kindISource
	kindDiode
	kindBJT
	kindVCVS
	kindVCCS
)

// device is one parsed netlist element. Nodes are resolved indices with 0 as
// ground; branch is the extra matrix row for elements that carry an unknown
// current (V, E and the inductor short).
type device struct {
	kind   deviceKind
	name   string
	nodes  []int
	value  float64 // R, C, L value; V, I dc value; E, G gain
	model  *model
	branch int

	// Nonlinear junction states, updated between NR iterations.
	vd  float64 // diode
	vbe float64 // BJT
	vbc float64
}

// model is a .model card. Only the parameters the OP analysis needs are
// kept; everything else on the card is accepted and ignored.
type model struct {
	name string
	pnp  bool

	is float64 // saturation current
	n  float64 // emission coefficient
	bf float64 // forward beta
	br float64 // reverse beta
}

func defaultDiodeModel(name string) *model {
	return &model{name: name, is: 1e-14, n: 1.0, bf: 100, br: 1}
}

// circuit is a parsed, node-resolved netlist ready for analysis.
type circuit struct {
	title    string
	devices  []*device
	maxNode  int // highest node index, ground excluded
	branches int
}

// row maps a node index to its matrix row; ground has no row.
func (c *circuit) row(node int) int { return node - 1 }

func (c *circuit) size() int { return c.maxNode + c.branches }

func (c *circuit) branchRow(d *device) int { return c.maxNode + d.branch }

// addA accumulates into the system matrix, dropping ground rows and columns.
func (c *circuit) addA(a *mat.Dense, ni, nj int, v float64) {
	if ni <= 0 || nj <= 0 {
		return
	}
	i, j := c.row(ni), c.row(nj)
	a.Set(i, j, a.At(i, j)+v)
}

func (c *circuit) addRawA(a *mat.Dense, i, j int, v float64) {
	a.Set(i, j, a.At(i, j)+v)
}

func (c *circuit) addB(b *mat.VecDense, node int, v float64) {
	if node <= 0 {
		return
	}
	b.SetVec(c.row(node), b.AtVec(c.row(node))+v)
}

// nodeVoltage reads a node voltage out of a solution vector; ground is 0.
func (c *circuit) nodeVoltage(solution []float64, node int) float64 {
	if node <= 0 {
		return 0
	}
	return solution[c.row(node)]
}

// stamp loads the MNA system for one NR iteration using the devices' current
// junction states. Capacitors are open and inductors are shorts at the
// operating point.
func (c *circuit) stamp(a *mat.Dense, b *mat.VecDense) {
	for _, d := range c.devices {
		switch d.kind {
		case kindResistor:
			g := 1.0 / d.value
			c.addA(a, d.nodes[0], d.nodes[0], g)
			c.addA(a, d.nodes[1], d.nodes[1], g)
			c.addA(a, d.nodes[0], d.nodes[1], -g)
			c.addA(a, d.nodes[1], d.nodes[0], -g)

		case kindCapacitor:
			// Open at DC.

		case kindVSource, kindInductor, kindVCVS:
			c.stampBranch(a, b, d)

		case kindISource:
			// Current flows from nodes[0] through the source to nodes[1].
			c.addB(b, d.nodes[0], -d.value)
			c.addB(b, d.nodes[1], d.value)

		case kindVCCS:
			// i(out+ -> out-) = gain * (vc+ - vc-)
			gm := d.value
			c.addA(a, d.nodes[0], d.nodes[2], gm)
			c.addA(a, d.nodes[0], d.nodes[3], -gm)
			c.addA(a, d.nodes[1], d.nodes[2], -gm)
			c.addA(a, d.nodes[1], d.nodes[3], gm)

		case kindDiode:
			c.stampDiode(a, b, d)

		case kindBJT:
			c.stampBJT(a, b, d)
		}
	}
}

// stampBranch loads a branch-current element: an ideal voltage source, an
// inductor treated as a 0 V source, or a VCVS.
func (c *circuit) stampBranch(a *mat.Dense, b *mat.VecDense, d *device) {
	br := c.branchRow(d)
	if d.nodes[0] > 0 {
		c.addRawA(a, c.row(d.nodes[0]), br, 1)
		c.addRawA(a, br, c.row(d.nodes[0]), 1)
	}
	if d.nodes[1] > 0 {
		c.addRawA(a, c.row(d.nodes[1]), br, -1)
		c.addRawA(a, br, c.row(d.nodes[1]), -1)
	}

	switch d.kind {
	case kindVSource:
		b.SetVec(br, b.AtVec(br)+d.value)
	case kindInductor:
		// 0 V constraint.
	case kindVCVS:
		// v(out) - gain * v(ctrl) = 0
		if d.nodes[2] > 0 {
			c.addRawA(a, br, c.row(d.nodes[2]), -d.value)
		}
		if d.nodes[3] > 0 {
			c.addRawA(a, br, c.row(d.nodes[3]), d.value)
		}
	}
}

// diodeEval returns the Shockley current and conductance at the given
// junction voltage.
func diodeEval(m *model, vd float64) (id, gd float64) {
	nvt := m.n * thermalVoltage
	ex := math.Exp(vd / nvt)
	id = m.is * (ex - 1)
	gd = m.is*ex/nvt + junctionGmin
	return id, gd
}

func (c *circuit) stampDiode(a *mat.Dense, b *mat.VecDense, d *device) {
	id, gd := diodeEval(d.model, d.vd)
	ieq := id - gd*d.vd

	c.addA(a, d.nodes[0], d.nodes[0], gd)
	c.addA(a, d.nodes[1], d.nodes[1], gd)
	c.addA(a, d.nodes[0], d.nodes[1], -gd)
	c.addA(a, d.nodes[1], d.nodes[0], -gd)
	c.addB(b, d.nodes[0], -ieq)
	c.addB(b, d.nodes[1], ieq)
}

// bjtEval evaluates the Ebers-Moll large-signal model at the device's
// junction states. Currents flow into the collector and base terminals; the
// derivative terms are with respect to vbe and vbc.
func bjtEval(m *model, vbe, vbc float64) (ic, ib, gmf, dicdvbc, gpi, gmu float64) {
	vt := thermalVoltage
	ebe := math.Exp(vbe / vt)
	ebc := math.Exp(vbc / vt)

	gf := m.is * ebe / vt // d(Is*(ebe-1))/dvbe
	gr := m.is * ebc / vt

	ic = m.is*(ebe-ebc) - (m.is/m.br)*(ebc-1)
	ib = (m.is/m.bf)*(ebe-1) + (m.is/m.br)*(ebc-1)

	gmf = gf + junctionGmin
	dicdvbc = -gr - gr/m.br
	gpi = gf/m.bf + junctionGmin
	gmu = gr/m.br + junctionGmin
	return ic, ib, gmf, dicdvbc, gpi, gmu
}

// stampBJT loads the NR-linearized transistor. Node order is collector,
// base, emitter. PNP devices are evaluated with reversed junction polarity.
func (c *circuit) stampBJT(a *mat.Dense, b *mat.VecDense, d *device) {
	sign := 1.0
	if d.model.pnp {
		sign = -1.0
	}

	nc, nb, ne := d.nodes[0], d.nodes[1], d.nodes[2]
	ic0, ib0, gmf, dicdvbc, gpi, gmu := bjtEval(d.model, d.vbe, d.vbc)

	// d(terminal current)/d(node voltage); vbe = s(vb-ve), vbc = s(vb-vc).
	// The outer sign on the terminal current and the inner sign on the
	// junction voltage cancel in every derivative.
	dic := [3]float64{-dicdvbc, gmf + dicdvbc, -gmf}  // d ic / d(vc, vb, ve)
	dib := [3]float64{-gmu, gpi + gmu, -gpi}          // d ib / d(vc, vb, ve)

	nodes := [3]int{nc, nb, ne}
	// Present node voltages consistent with the junction states.
	v := [3]float64{-sign * d.vbc, 0, -sign * d.vbe} // relative to base

	currents := [3]float64{sign * ic0, sign * ib0, sign * -(ic0 + ib0)}
	derivs := [3][3]float64{dic, dib, {}}
	for k := 0; k < 3; k++ {
		derivs[2][k] = -(dic[k] + dib[k])
	}

	for t := 0; t < 3; t++ {
		if nodes[t] <= 0 {
			continue
		}
		rhs := -currents[t]
		for k := 0; k < 3; k++ {
			c.addA(a, nodes[t], nodes[k], derivs[t][k])
			rhs += derivs[t][k] * v[k]
		}
		c.addB(b, nodes[t], rhs)
	}
}

// updateNonlinear refreshes the junction states from a solution, applying
// SPICE junction-voltage limiting to keep the exponentials finite.
func (c *circuit) updateNonlinear(solution []float64) {
	for _, d := range c.devices {
		switch d.kind {
		case kindDiode:
			vnew := c.nodeVoltage(solution, d.nodes[0]) - c.nodeVoltage(solution, d.nodes[1])
			d.vd = pnjlim(vnew, d.vd, d.model.n*thermalVoltage, critVoltage(d.model))

		case kindBJT:
			sign := 1.0
			if d.model.pnp {
				sign = -1.0
			}
			vc := c.nodeVoltage(solution, d.nodes[0])
			vb := c.nodeVoltage(solution, d.nodes[1])
			ve := c.nodeVoltage(solution, d.nodes[2])
			vcrit := critVoltage(d.model)
			d.vbe = pnjlim(sign*(vb-ve), d.vbe, thermalVoltage, vcrit)
			d.vbc = pnjlim(sign*(vb-vc), d.vbc, thermalVoltage, vcrit)
		}
	}
}

func critVoltage(m *model) float64 {
	nvt := m.n * thermalVoltage
	return nvt * math.Log(nvt/(math.Sqrt2*m.is))
}

// pnjlim is the classic SPICE junction-voltage limiter: forward steps past
// the critical voltage grow logarithmically instead of linearly.
func pnjlim(vnew, vold, vt, vcrit float64) float64 {
	if vnew <= vcrit || math.Abs(vnew-vold) <= 2*vt {
		return vnew
	}
	if vold > 0 {
		arg := 1 + (vnew-vold)/vt
		if arg > 0 {
			return vold + vt*math.Log(arg)
		}
		return vcrit
	}
	return vt * math.Log(vnew/vt)
}
