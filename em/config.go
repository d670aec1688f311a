package em

import "runtime"

// Config holds EM training hyperparameters.
type Config struct {
	Threads        int
	TrainVariances bool
	// BurnIn is the number of rounds before model adaptation starts.
	BurnIn int
	// Epsilon clamps smaller responsibilities to zero.
	Epsilon       float64
	VarianceFloor float64
	// A component splits when its support reaches SplitMinSupport and its
	// mean variance is not shrinking and exceeds SplitMinVariance.
	SplitMinSupport  float64
	SplitMinVariance float64
	// PruneWeight removes components whose weight falls below it.
	PruneWeight float64
}

// DefaultConfig returns the default training hyperparameters.
func DefaultConfig() Config {
	return Config{
		Threads:          runtime.GOMAXPROCS(0),
		TrainVariances:   true,
		BurnIn:           3,
		Epsilon:          1e-9,
		VarianceFloor:    0.01,
		SplitMinSupport:  4,
		SplitMinVariance: 1.0,
		PruneWeight:      1e-4,
	}
}
