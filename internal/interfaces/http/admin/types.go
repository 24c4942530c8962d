package admin

import (
	"time"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
)

type failedDeliveryResponse struct {
	ID           string    `json:"id"`
	Sink         string    `json:"sink"`
	SubmissionID string    `json:"submissionId"`
	Error        string    `json:"error"`
	Attempts     int       `json:"attempts"`
	Status       string    `json:"status"`
	SubmittedAt  time.Time `json:"submittedAt"`
	CreatedAt    time.Time `json:"createdAt"`
	LastTriedAt  time.Time `json:"lastTriedAt"`
}

type failedDeliveryListResponse struct {
	Items []failedDeliveryResponse `json:"items"`
	Page  int                      `json:"page"`
	Limit int                      `json:"limit"`
}

type retryResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// toFailedDeliveryResponse omits the stored payload, which may carry personal data.
func toFailedDeliveryResponse(failure domain.FailedDelivery) failedDeliveryResponse {
	return failedDeliveryResponse{
		ID:           failure.ID,
		Sink:         failure.Sink,
		SubmissionID: failure.SubmissionID,
		Error:        failure.Error,
		Attempts:     failure.Attempts,
		Status:       failure.Status,
		SubmittedAt:  failure.SubmittedAt,
		CreatedAt:    failure.CreatedAt,
		LastTriedAt:  failure.LastTriedAt,
	}
}
