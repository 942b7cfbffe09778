package models

// Requests for residual value HTTP endpoints.

type ResidualValueRequest struct {
	Date string `query:"date" json:"date" validate:"required,tradingdate"`
}

type DateOptionsRequest struct {
	Limit int `query:"limit" json:"limit" default:"3" validate:"gte=1,lte=60"`
}

// RecomputeRequest without a date drops every cached view instead.
type RecomputeRequest struct {
	Date string `json:"date" validate:"omitempty,tradingdate"`
}
