package public

type submitResponse struct {
	Message      string `json:"message"`
	SubmissionID string `json:"submissionId"`
}

type messageResponse struct {
	Message string `json:"message"`
}
