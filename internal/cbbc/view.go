package cbbc

import (
	"errors"
	"fmt"
	"math"

	"Shootdown/internal/domain/models"
)

var (
	// ErrMalformedRecord reports an exposure record with a non-finite Start or Net.
	ErrMalformedRecord = errors.New("cbbc: malformed exposure record")
	// ErrInvalidPrice reports a non-finite reference price.
	ErrInvalidPrice = errors.New("cbbc: invalid reference price")
)

// Compute builds the residual value view for one trading date.
//
// Missing sentinel records count as 0 and unmatched marker scans yield
// NotFound; neither is an error.
func Compute(records []models.ExposureRecord, high, low, hsiClose float64) (models.View, error) {
	if err := validatePrices(high, low, hsiClose); err != nil {
		return models.View{}, err
	}
	if err := ValidateRecords(records); err != nil {
		return models.View{}, err
	}

	r := BuildRanges(hsiClose)
	bearNet := Aggregate(records, r.Bear, models.DirectionBear, TimeCutoff)
	bullNet := Aggregate(records, r.Bull, models.DirectionBull, TimeCutoff)

	return models.View{
		Bear: models.SideView{
			RangeLabel: BearLabels(r.Bear),
			Net:        bearNet,
		},
		Bull: models.SideView{
			RangeLabel: BullLabels(r.Bull),
			Net:        bullNet,
		},
		BearMin:  BearPosition(sentinelNet(records, StartNoCBBCLower), r.Bear),
		BullMax:  BullPosition(sentinelNet(records, StartNoCBBCUpper), r.Bull),
		BearCall: BearPosition(high, r.Bear),
		BullCall: BullPosition(low, r.Bull),
		Max:      maxAbs(bearNet, bullNet),
		HSIClose: hsiClose,
	}, nil
}

// ValidateRecords fails on the first record carrying NaN or infinite values
// or a direction other than bear or bull.
func ValidateRecords(records []models.ExposureRecord) error {
	for i, r := range records {
		if !finite(r.Start) {
			return fmt.Errorf("%w: record %d start=%v", ErrMalformedRecord, i, r.Start)
		}
		if !finite(r.Net) {
			return fmt.Errorf("%w: record %d net=%v", ErrMalformedRecord, i, r.Net)
		}
		if r.Direction != models.DirectionBear && r.Direction != models.DirectionBull {
			return fmt.Errorf("%w: record %d bullbear=%q", ErrMalformedRecord, i, r.Direction)
		}
	}
	return nil
}

func validatePrices(high, low, hsiClose float64) error {
	for _, p := range []struct {
		name string
		v    float64
	}{{"high", high}, {"low", low}, {"close", hsiClose}} {
		if !finite(p.v) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidPrice, p.name, p.v)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
