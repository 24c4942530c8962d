package domain

import (
	"encoding/json"
	"time"
)

// Record はフォーム送信 1 件分の入力。リクエストごとに構築され、整形後にシンクへ渡される。
type Record struct {
	ID          string
	Services    []string
	Fields      []Field
	FormData    json.RawMessage
	Raw         []byte
	SubmittedAt time.Time
}

// Field は formData のキーと分類済みの値の組。
type Field struct {
	Key   string
	Value Value
}

// StoredSubmission はシンクから読み戻した送信内容。
type StoredSubmission struct {
	ID          string          `json:"id"`
	Services    []string        `json:"services"`
	FormData    json.RawMessage `json:"formData,omitempty"`
	Markdown    string          `json:"markdown,omitempty"`
	SubmittedAt time.Time       `json:"submittedAt"`
	Source      string          `json:"source"`
}

// FailedDelivery はシンクへの書き込みに失敗した送信を後から再送するための記録。
type FailedDelivery struct {
	ID           string
	Sink         string
	SubmissionID string
	Payload      []byte
	Error        string
	Attempts     int
	Status       string
	SubmittedAt  time.Time
	CreatedAt    time.Time
	LastTriedAt  time.Time
}

const (
	FailureStatusPending  = "pending"
	FailureStatusResolved = "resolved"
)
