package ablyutil

import (
	"math/rand"
	"sort"
)

// Shuffle returns a copy of list in random order. The input is not modified.
func Shuffle(list []string) []string {
	shuffled := append([]string(nil), list...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// Sort returns a sorted copy of list.
func Sort(list []string) []string {
	sorted := append([]string(nil), list...)
	sort.Strings(sorted)
	return sorted
}

func Contains(s []string, str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}
