package models

// Direction tags which side of the market a CBBC exposure belongs to.
type Direction string

const (
	DirectionBear Direction = "bear"
	DirectionBull Direction = "bull"
)

// ExposureRecord is one residual-value observation for a trading date.
type ExposureRecord struct {
	Date      string    `json:"date" yaml:"date"`
	Time      int       `json:"time" yaml:"time"` // snapshot code, e.g. 929 (open) or 2330 (close)
	Start     float64   `json:"start" yaml:"start"`
	Net       float64   `json:"net" yaml:"net"`
	Direction Direction `json:"bullbear" yaml:"bullbear"`
}

// OHLC holds the reference index prices for one trading date.
type OHLC struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}
