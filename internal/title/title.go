// Package title generates playful default names for untitled notes.
package title

import (
	"math/rand/v2"
	"strings"
)

var adjectives = []string{
	"Wobbly", "Fluffy", "Soggy", "Mysterious", "Spicy", "Lazy", "Sneaky", "Quantum", "Tiny",
}

var nouns = []string{
	"Pineapple", "Platypus", "Banana", "Unicorn", "Robot", "Toaster", "Penguin", "Noodle", "Llama",
}

var verbs = []string{
	"Dances", "Explodes", "Runs", "Sleeps", "Whispers", "Jumps", "Slides", "Eats",
}

// Generate returns "Adjective Noun" or, half of the time, "Adjective Noun Verb".
func Generate() string {
	return generate(rand.IntN)
}

func generate(intn func(int) int) string {
	parts := []string{pick(adjectives, intn), pick(nouns, intn)}
	if intn(2) == 1 {
		parts = append(parts, pick(verbs, intn))
	}
	return strings.Join(parts, " ")
}

func pick(words []string, intn func(int) int) string {
	return words[intn(len(words))]
}
