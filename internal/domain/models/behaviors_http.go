package models

// Requests for behavior HTTP endpoints. Defined in domain for consistency and reuse.

type AnalyzeRequest struct {
	CollarID string `query:"collar_id" json:"collar_id" validate:"required"`
	From     string `query:"from" json:"from" validate:"required"`
	To       string `query:"to" json:"to" validate:"required"`
	Persist  bool   `query:"persist" json:"persist" default:"true"`
}

type OptimizeRequest struct {
	DryRun            bool    `query:"dry_run" json:"dry_run"`
	OptimizationCalls int     `query:"optimization_calls" json:"optimization_calls" default:"50" validate:"gte=10,lte=200"`
	MinImprovement    float64 `query:"min_improvement" json:"min_improvement" default:"0.05" validate:"gte=0.01"`
	MaxFeedbackItems  int     `query:"max_feedback_items" json:"max_feedback_items" default:"1000" validate:"gte=100,lte=5000"`
}

type EventsRequest struct {
	CollarID string `query:"collar_id" json:"collar_id" validate:"required"`
	From     string `query:"from" json:"from"`
	To       string `query:"to" json:"to"`
	Limit    int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}

type FeedbackRequest struct {
	EventID   string `json:"event_id" validate:"required"`
	CollarID  string `json:"collar_id" validate:"required"`
	Behavior  string `json:"behavior" validate:"required"`
	Judgment  string `json:"user_feedback" validate:"required,oneof=correct incorrect"`
	Timestamp string `json:"timestamp"`
}
