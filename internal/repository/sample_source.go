package repository

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"Shootdown/internal/domain/models"
	domrepo "Shootdown/internal/domain/repository"
	"Shootdown/pkg/util"
)

type sampleDay struct {
	OHLC    []float64               `yaml:"ohlc"`
	Records []models.ExposureRecord `yaml:"records"`
}

type sampleFile struct {
	Dates map[string]sampleDay `yaml:"dates"`
}

// SampleSource serves a fixed data set loaded from a YAML fixture.
type SampleSource struct {
	days map[string]sampleDay
}

// NewSampleSource loads the fixture at path.
func NewSampleSource(path string) (*SampleSource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sample data: %w", err)
	}
	return ParseSampleSource(b)
}

// ParseSampleSource builds a source from fixture bytes.
func ParseSampleSource(b []byte) (*SampleSource, error) {
	var f sampleFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse sample data: %w", err)
	}
	days := make(map[string]sampleDay, len(f.Dates))
	for date, d := range f.Dates {
		if !util.IsTradingDate(date) {
			return nil, fmt.Errorf("sample data: invalid date %q", date)
		}
		if d.OHLC != nil && len(d.OHLC) != 4 {
			return nil, fmt.Errorf("sample data %s: %w: want 4 values, got %d", date, ErrMalformedOHLC, len(d.OHLC))
		}
		for i := range d.Records {
			d.Records[i].Date = date
		}
		days[date] = d
	}
	return &SampleSource{days: days}, nil
}

func (s *SampleSource) Residuals(_ context.Context, date string) ([]models.ExposureRecord, error) {
	d := s.days[date]
	out := make([]models.ExposureRecord, 0, len(d.Records))
	for _, r := range d.Records {
		if domrepo.IsValidSnapshot(r.Time) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (s *SampleSource) OHLC(_ context.Context, date string) (models.OHLC, error) {
	d, ok := s.days[date]
	if !ok || d.OHLC == nil {
		return models.OHLC{}, fmt.Errorf("ohlc for %s: %w", date, domrepo.ErrNotFound)
	}
	return models.OHLC{Open: d.OHLC[0], High: d.OHLC[1], Low: d.OHLC[2], Close: d.OHLC[3]}, nil
}

func (s *SampleSource) RecentDates(_ context.Context, limit int) ([]int, error) {
	out := make([]int, 0, len(s.days))
	for date := range s.days {
		v, err := strconv.Atoi(date)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *SampleSource) Health(context.Context) error { return nil }

func (s *SampleSource) Close() error { return nil }
