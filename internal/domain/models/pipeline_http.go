package models

// Requests for pipeline HTTP endpoints. Defined in domain for consistency and reuse.

type RunRequest struct {
	From    string   `json:"from" validate:"required"`
	To      string   `json:"to" validate:"required"`
	Symbols []string `json:"symbols"`
}

type FeaturesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=50000"`
}

type DriftRequest struct {
	RunID string `query:"run_id" json:"run_id"`
}

type TrainRequest struct {
	RunID string `json:"run_id"`
}
