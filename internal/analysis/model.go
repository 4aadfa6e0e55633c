package analysis

// Submission is one user request to analyze a résumé. It is never persisted.
type Submission struct {
	CompanyName    string
	JobTitle       string
	JobDescription string
	Document       []byte
}

// Record is the durable analysis result stored under the canonical key.
type Record struct {
	ID               string    `json:"id"`
	DocumentPath     string    `json:"resumePath"`
	PreviewImagePath string    `json:"imagePath"`
	CompanyName      string    `json:"companyName"`
	JobTitle         string    `json:"jobTitle"`
	JobDescription   string    `json:"jobDescription"`
	Feedback         *Feedback `json:"feedback"`
}

// ScoreLabel buckets a 0-100 score the way the résumé list badges do.
func ScoreLabel(score float64) string {
	switch {
	case score > 70:
		return "Strong"
	case score > 49:
		return "Good start"
	default:
		return "Needs Work"
	}
}
