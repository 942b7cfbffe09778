package repository

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"Shootdown/internal/domain/models"
)

// ErrMalformedOHLC reports an ohlc content value that is not a list of
// four numbers.
var ErrMalformedOHLC = errors.New("malformed ohlc content")

// ParseOHLCContent parses the stored "[open, high, low, close]" literal.
func ParseOHLCContent(content string) (models.OHLC, error) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "[") || !strings.HasSuffix(content, "]") {
		return models.OHLC{}, fmt.Errorf("%w: %q", ErrMalformedOHLC, content)
	}
	var vals []float64
	if err := yaml.Unmarshal([]byte(content), &vals); err != nil {
		return models.OHLC{}, fmt.Errorf("%w: %v", ErrMalformedOHLC, err)
	}
	if len(vals) != 4 {
		return models.OHLC{}, fmt.Errorf("%w: want 4 values, got %d", ErrMalformedOHLC, len(vals))
	}
	return models.OHLC{Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3]}, nil
}
