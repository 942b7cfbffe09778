package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Shootdown/internal/domain/models"
	pkgkafka "Shootdown/pkg/kafka"
)

type fakeRecomputer struct {
	dates   []string
	cleared int
	err     error
}

func (f *fakeRecomputer) InvalidateAll(context.Context) error {
	f.cleared++
	return f.err
}

func (f *fakeRecomputer) Recompute(_ context.Context, date string) (*models.View, error) {
	f.dates = append(f.dates, date)
	return &models.View{}, f.err
}

func TestRecomputeHandler(t *testing.T) {
	rc := &fakeRecomputer{}
	h := NewRecomputeHandler("cbbc.recompute", rc, nil)
	assert.Equal(t, "cbbc.recompute", h.Topic())

	require.NoError(t, h.Handle(context.Background(), []byte(`{"date":"20260114"}`)))
	assert.Equal(t, []string{"20260114"}, rc.dates)
}

func TestRecomputeHandlerRejectsBadPayloads(t *testing.T) {
	rc := &fakeRecomputer{}
	m := &fakeMetrics{}
	h := NewRecomputeHandler("cbbc.recompute", rc, m)

	for _, body := range []string{`not json`, `{"date":"2026-01-14"}`, `{"date":"20261399"}`} {
		err := h.Handle(context.Background(), []byte(body))
		assert.ErrorIs(t, err, pkgkafka.ErrPermanent, "body %s", body)
	}
	assert.Empty(t, rc.dates)
	assert.Zero(t, rc.cleared)
	assert.Equal(t, []string{"consumer_unmarshal", "consumer_validate", "consumer_validate"}, m.errors)
}

func TestRecomputeHandlerErrorClasses(t *testing.T) {
	rc := &fakeRecomputer{err: ErrNoData}
	h := NewRecomputeHandler("cbbc.recompute", rc, nil)
	err := h.Handle(context.Background(), []byte(`{"date":"20260114"}`))
	assert.ErrorIs(t, err, pkgkafka.ErrPermanent)

	boom := errors.New("timeout")
	rc.err = boom
	err = h.Handle(context.Background(), []byte(`{"date":"20260114"}`))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, pkgkafka.ErrPermanent)
}

func TestRecomputeHandlerWithoutDateClearsViews(t *testing.T) {
	rc := &fakeRecomputer{}
	h := NewRecomputeHandler("cbbc.recompute", rc, nil)

	require.NoError(t, h.Handle(context.Background(), []byte(`{}`)))
	require.NoError(t, h.Handle(context.Background(), []byte(`{"date":""}`)))
	assert.Equal(t, 2, rc.cleared)
	assert.Empty(t, rc.dates)
}
