package pma

// densityBounds holds the four tunable reals that parameterize the
// calibrator tree, as described in spec.md 4.1. rho0/theta0 bound the
// leaves (height 1); rhoH/thetaH bound the root (height H).
type densityBounds struct {
	rho0, rhoH, thetaH, theta0 float64
}

func newDensityBounds(rho0, rhoH, thetaH, theta0 float64) (densityBounds, error) {
	if !(rho0 >= 0) {
		return densityBounds{}, newConfigError("rho0 must be >= 0, got %v", rho0)
	}
	if !(rho0 < rhoH) {
		return densityBounds{}, newConfigError("rho0 (%v) must be < rhoH (%v)", rho0, rhoH)
	}
	if !(rhoH <= thetaH) {
		return densityBounds{}, newConfigError("rhoH (%v) must be <= thetaH (%v)", rhoH, thetaH)
	}
	if !(thetaH < theta0) {
		return densityBounds{}, newConfigError("thetaH (%v) must be < theta0 (%v)", thetaH, theta0)
	}
	if !(theta0 <= 1) {
		return densityBounds{}, newConfigError("theta0 must be <= 1, got %v", theta0)
	}
	return densityBounds{rho0: rho0, rhoH: rhoH, thetaH: thetaH, theta0: theta0}, nil
}

// thresholds returns (rho(h), theta(h)) for a tree of overall height H,
// transcribed from original_source/pma/density_bounds.cpp.
func (d densityBounds) thresholds(height, h int) (rho, theta float64) {
	if height == 1 {
		return d.rho0, d.theta0
	}
	scale := float64(height-h) / float64(height-1)
	rho = d.rhoH - (d.rhoH-d.rho0)*scale
	theta = d.thetaH + (d.theta0-d.thetaH)*scale
	return rho, theta
}

// calibrator is the virtual binary tree over segments (C2). It is pure
// policy: a cache of (rho, theta) pairs for every height, rebuilt
// whenever the tree height changes.
type calibrator struct {
	bounds densityBounds
	height int
	cache  []struct{ rho, theta float64 }
}

func newCalibrator(bounds densityBounds) *calibrator {
	c := &calibrator{bounds: bounds}
	c.rebuild(1)
	return c
}

// rebuild recomputes the cache for a tree of the given height. Called
// whenever number_of_segments changes (i.e. after a resize).
func (c *calibrator) rebuild(height int) {
	c.height = height
	c.cache = make([]struct{ rho, theta float64 }, height)
	for h := 1; h <= height; h++ {
		rho, theta := c.bounds.thresholds(height, h)
		c.cache[h-1] = struct{ rho, theta float64 }{rho, theta}
	}
}

// at returns the cached (rho, theta) for height h (1 = leaf, c.height = root).
func (c *calibrator) at(h int) (rho, theta float64) {
	b := c.cache[h-1]
	return b.rho, b.theta
}
