package domain

// Payload is the fixed body posted to an account's webhook.
type Payload struct {
	User     Contact      `json:"user"`
	Analysis AnalysisBody `json:"analysis"`
}

// Contact is the lead captured with an analysis.
type Contact struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

// AnalysisBody wraps the analysis results.
type AnalysisBody struct {
	Results Results `json:"results"`
}

// Results is the outcome of a skin analysis. Concerns and recommendations
// must be present but may be empty.
type Results struct {
	SkinType        string   `json:"skinType"`
	Concerns        []string `json:"concerns" validate:"required"`
	Recommendations []string `json:"recommendations" validate:"required"`
}
