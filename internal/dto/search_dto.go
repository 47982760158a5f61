package dto

const (
	FeedbackLike    = "like"
	FeedbackDislike = "dislike"
)

type FeedbackPayload struct {
	OfferID int64  `json:"offer_id" validate:"required,gt=0"`
	Type    string `json:"type" validate:"required,oneof=like dislike"`
}

type SearchRequest struct {
	Query    string            `json:"query"`
	Resume   string            `json:"resume"`
	Feedback []FeedbackPayload `json:"feedback" validate:"dive"`
	Filters  OfferFilter       `json:"filters"`
	Limit    int               `json:"limit" validate:"omitempty,gte=1,lte=500"`
}

type SearchHit struct {
	Offer OfferDTO `json:"offer"`
	// Score and DisplayScore are nil for the unranked listing.
	Score        *float64 `json:"score"`
	DisplayScore *int     `json:"display_score,omitempty"`
}

type SearchResponse struct {
	Mode string      `json:"mode"`
	Hits []SearchHit `json:"hits"`
}
