package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"Shootdown/internal/cbbc"
	"Shootdown/internal/domain/models"
	domrepo "Shootdown/internal/domain/repository"
	xhttp "Shootdown/pkg/http"
	pkgkafka "Shootdown/pkg/kafka"
)

type recomputer interface {
	Recompute(ctx context.Context, date string) (*models.View, error)
	InvalidateAll(ctx context.Context) error
}

// RecomputeHandler consumes {"date":"YYYYMMDD"} requests and rebuilds the view.
// A request without a date clears every cached view.
type RecomputeHandler struct {
	topic   string
	uc      recomputer
	metrics domrepo.Metrics
}

func NewRecomputeHandler(topic string, uc recomputer, metrics domrepo.Metrics) *RecomputeHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &RecomputeHandler{topic: topic, uc: uc, metrics: metrics}
}

func (h *RecomputeHandler) Topic() string { return h.topic }

// Handle marks malformed payloads and missing data as permanent so they go
// straight to the DLQ.
func (h *RecomputeHandler) Handle(ctx context.Context, b []byte) error {
	var req models.RecomputeRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("%w: decode recompute request: %v", pkgkafka.ErrPermanent, err)
	}
	if verrs := xhttp.ValidateStruct(&req); len(verrs) > 0 {
		h.metrics.RecordError("consumer_validate")
		return fmt.Errorf("%w: %s", pkgkafka.ErrPermanent, verrs[0].Message)
	}

	if req.Date == "" {
		return h.uc.InvalidateAll(ctx)
	}
	if _, err := h.uc.Recompute(ctx, req.Date); err != nil {
		if isPermanent(err) {
			return fmt.Errorf("%w: %v", pkgkafka.ErrPermanent, err)
		}
		return err
	}
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrNoData) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, cbbc.ErrMalformedRecord) ||
		errors.Is(err, cbbc.ErrInvalidPrice)
}

var _ pkgkafka.MessageHandler = (*RecomputeHandler)(nil)
