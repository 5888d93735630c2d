package utils

import (
	"math/rand"

	"github.com/Pallinder/go-randomdata"
)

// RandomNameGenerator hands out unique names for imported nodes that come
// without one. The sequence is deterministic so repeated imports produce the
// same names.
type RandomNameGenerator map[string]struct{}

// Reserve marks existing names as taken.
func (rng *RandomNameGenerator) Reserve(names ...string) {
	rng.init()
	for _, n := range names {
		(*rng)[n] = struct{}{}
	}
}

func (rng *RandomNameGenerator) init() {
	if *rng == nil {
		*rng = make(map[string]struct{})
		randomdata.CustomRand(rand.New(rand.NewSource(0)))
	}
}

func (rng *RandomNameGenerator) RandomName() string {
	rng.init()
	for {
		name := randomdata.SillyName()
		if _, exists := (*rng)[name]; !exists {
			(*rng)[name] = struct{}{}
			return name
		}
	}
}
