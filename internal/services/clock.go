package service

import (
	"math/rand"
	"time"
)

// Clock abstracts time so check-in and spin deadlines are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// RewardSource draws a uniform integer from the closed range [min, max].
type RewardSource interface {
	IntN(min, max int32) int32
}

type uniformSource struct{}

func (uniformSource) IntN(min, max int32) int32 {
	if max <= min {
		return min
	}
	return min + rand.Int31n(max-min+1)
}

func UniformRewardSource() RewardSource { return uniformSource{} }
