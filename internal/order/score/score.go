// Package score rates how well each extracted item is supported by the
// source transcript and filters implausible items.
package score

import (
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/voxorder/internal/order"
)

const (
	// mentionFloor is the confidence kept when none of the product words
	// appear in the transcript.
	mentionFloor = 0.3

	// attributeBoost rewards an explicitly stated size or temperature.
	attributeBoost = 1.05

	// minWordLength is the shortest product word counted as evidence.
	minWordLength = 3
)

// Confidence returns the confidence in [0, 1] that item was actually ordered
// in source. Matching is case-insensitive.
//
// A product that appears verbatim keeps full confidence. Otherwise the score
// is scaled by the share of product words (longer than two characters) found
// in the transcript. Stated size and temperature each add a small boost.
func Confidence(item order.CategorizedItem, source string) float64 {
	text := strings.ToLower(source)
	product := strings.ToLower(item.Product)

	conf := 1.0
	if !strings.Contains(text, product) {
		words := strings.Fields(product)
		found := 0
		for _, w := range words {
			if utf8.RuneCountInString(w) >= minWordLength && strings.Contains(text, w) {
				found++
			}
		}
		ratio := float64(found) / float64(max(len(words), 1))
		conf *= mentionFloor + (1-mentionFloor)*ratio
	}
	if item.Size != nil {
		conf *= attributeBoost
	}
	if item.Temperature != nil {
		conf *= attributeBoost
	}
	return min(max(conf, 0), 1)
}
