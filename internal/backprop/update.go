package backprop

import "math"

// WeightUpdate is the pluggable, stateful optimizer consumed by both
// backpropagation modes: it holds velocity/prev-velocity per weight
// across iterations and updates parameters in place given the current,
// already norm-clipped gradient (spec §4.2 "pluggable weight-update
// method").
type WeightUpdate interface {
	// Update mutates parameters in place using gradient, velocity and
	// prevVelocity (both sized len(parameters), owned by the caller and
	// carried across iterations), and the current iteration index.
	Update(parameters, velocity, prevVelocity, gradient []float64, iteration int)
}

// SGDWeightUpdate is plain gradient descent with optional momentum,
// the original "vanilla" fallback (spec §6 `weight_update_method`
// option table names this alongside Adam variants).
type SGDWeightUpdate struct {
	LearningRate float64
	Momentum     float64
}

func (u *SGDWeightUpdate) Update(parameters, velocity, prevVelocity, gradient []float64, iteration int) {
	for i := range parameters {
		velocity[i] = u.Momentum*velocity[i] - u.LearningRate*gradient[i]
		parameters[i] += velocity[i]
	}
}

// AdamWeightUpdate implements Adam (Kingma & Ba): first/second moment
// estimates with bias correction. velocity holds the first moment (m),
// prevVelocity holds the second moment (v) — reusing the two
// caller-owned slices the original "velocity, prev_velocity" naming
// already provides rather than introducing a third.
type AdamWeightUpdate struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

// NewAdamWeightUpdate returns an AdamWeightUpdate with the given
// learning rate and the standard defaults (beta1=0.9, beta2=0.999,
// eps=1e-8).
func NewAdamWeightUpdate(learningRate float64) *AdamWeightUpdate {
	return &AdamWeightUpdate{LearningRate: learningRate, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

func (u *AdamWeightUpdate) Update(parameters, velocity, prevVelocity, gradient []float64, iteration int) {
	t := float64(iteration + 1)
	b1t := math.Pow(u.Beta1, t)
	b2t := math.Pow(u.Beta2, t)
	for i := range parameters {
		velocity[i] = u.Beta1*velocity[i] + (1-u.Beta1)*gradient[i]
		prevVelocity[i] = u.Beta2*prevVelocity[i] + (1-u.Beta2)*gradient[i]*gradient[i]
		mHat := velocity[i] / (1 - b1t)
		vHat := prevVelocity[i] / (1 - b2t)
		parameters[i] -= u.LearningRate * mHat / (math.Sqrt(vHat) + u.Epsilon)
	}
}

// NesterovWeightUpdate is Nesterov-accelerated SGD, grounded in the
// same `weight_update_method` enum the original exposes alongside
// Adam. velocity holds the running momentum term; prevVelocity is
// unused but kept for interface symmetry with Adam's two-state needs.
type NesterovWeightUpdate struct {
	LearningRate float64
	Momentum     float64
}

func (u *NesterovWeightUpdate) Update(parameters, velocity, prevVelocity, gradient []float64, iteration int) {
	for i := range parameters {
		prev := velocity[i]
		velocity[i] = u.Momentum*prev - u.LearningRate*gradient[i]
		parameters[i] += -u.Momentum*prev + (1+u.Momentum)*velocity[i]
	}
}
