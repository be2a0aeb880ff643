package middleware

import (
	"math/rand/v2"

	"github.com/devmarvs/yaade"
)

// Sampler decides whether a successful request is logged.
type Sampler func(*yaade.Context) bool

// SampleRate keeps roughly rate of requests; rate >= 1 keeps all of them.
func SampleRate(rate float64) Sampler {
	switch {
	case rate >= 1:
		return func(*yaade.Context) bool { return true }
	case rate <= 0:
		return func(*yaade.Context) bool { return false }
	}
	return func(*yaade.Context) bool {
		return rand.Float64() < rate
	}
}
