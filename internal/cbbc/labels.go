package cbbc

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func newPrinter() *message.Printer {
	return message.NewPrinter(language.English)
}

// BearLabels renders "from - to-1" for each bear bucket.
func BearLabels(bear []float64) []string {
	p := newPrinter()
	labels := make([]string, 0, len(bear)-1)
	for i := 0; i+1 < len(bear); i++ {
		from := int64(math.RoundToEven(bear[i]))
		to := int64(math.RoundToEven(bear[i+1])) - 1
		labels = append(labels, p.Sprintf("%d - %d", from, to))
	}
	return labels
}

// BullLabels renders "from - to-1" for each bull bucket except the last one,
// adjacent to the close, which shows the close itself as its upper bound.
func BullLabels(bull []float64) []string {
	p := newPrinter()
	last := len(bull) - 2
	labels := make([]string, 0, len(bull)-1)
	for i := 0; i+1 < len(bull); i++ {
		from := int64(bull[i])
		var to int64
		if i == last {
			to = int64(math.RoundToEven(bull[i+1]))
		} else {
			to = int64(bull[i+1]) - 1
		}
		labels = append(labels, p.Sprintf("%d - %d", from, to))
	}
	return labels
}
