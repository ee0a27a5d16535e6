package elements

// applyOrder gathers v into the current element order: v[i] = old
// v[order[i]].
func applyOrder(order []int, v []float64) {
	tmp := append([]float64(nil), v...)
	for i, idx := range order {
		v[i] = tmp[idx]
	}
}

// applyUnorder scatters v back to the original input order:
// v[order[i]] = old v[i].
func applyUnorder(order []int, v []float64) {
	tmp := append([]float64(nil), v...)
	for i, idx := range order {
		v[idx] = tmp[i]
	}
}

// Reorder brings the per-element arrays that tree construction does not
// touch (normals, areas, source term) into the tree's element order.
// The positions and Order itself were already permuted in place while
// the tree was built.
func (e *Elements) Reorder() {
	n := e.Num()

	applyOrder(e.Order, e.Nx)
	applyOrder(e.Order, e.Ny)
	applyOrder(e.Order, e.Nz)

	applyOrder(e.Order, e.Area)
	applyOrder(e.Order, e.SourceTerm[:n])
	applyOrder(e.Order, e.SourceTerm[n:])
}

// Unorder restores every per-element array, and the given potential
// vector, to the original input order.
func (e *Elements) Unorder(potential []float64) {
	n := e.Num()

	applyUnorder(e.Order, e.X)
	applyUnorder(e.Order, e.Y)
	applyUnorder(e.Order, e.Z)

	applyUnorder(e.Order, e.Nx)
	applyUnorder(e.Order, e.Ny)
	applyUnorder(e.Order, e.Nz)

	applyUnorder(e.Order, e.Area)
	applyUnorder(e.Order, e.SourceTerm[:n])
	applyUnorder(e.Order, e.SourceTerm[n:])

	applyUnorder(e.Order, e.TargetCharge)
	applyUnorder(e.Order, e.TargetChargeDx)
	applyUnorder(e.Order, e.TargetChargeDy)
	applyUnorder(e.Order, e.TargetChargeDz)
	applyUnorder(e.Order, e.SourceCharge)
	applyUnorder(e.Order, e.SourceChargeDx)
	applyUnorder(e.Order, e.SourceChargeDy)
	applyUnorder(e.Order, e.SourceChargeDz)

	if potential != nil {
		applyUnorder(e.Order, potential[:n])
		applyUnorder(e.Order, potential[n:])
	}

	for i := range e.Order {
		e.Order[i] = i
	}
}
