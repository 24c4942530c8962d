package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmissionDocument は MongoDB 上での送信アーカイブのスキーマ。formData はキー順を保つため bson.D で持ち、
// 受信した JSON そのものを formDataJson に残す。
type SubmissionDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	SubmissionID string             `bson:"submissionId"`
	Services     []string           `bson:"services"`
	FormData     bson.D             `bson:"formData,omitempty"`
	FormDataJSON string             `bson:"formDataJson,omitempty"`
	Markdown     string             `bson:"markdown"`
	SubmittedAt  time.Time          `bson:"submittedAt"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

// FailedDeliveryDocument はシンク書き込み失敗の記録。payload は元のリクエスト本文そのもの。
type FailedDeliveryDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	Target       string             `bson:"target"`
	SubmissionID string             `bson:"submissionId"`
	Payload      string             `bson:"payload"`
	Error        string             `bson:"error"`
	Attempts     int                `bson:"attempts"`
	Status       string             `bson:"status"`
	SubmittedAt  time.Time          `bson:"submittedAt"`
	CreatedAt    time.Time          `bson:"createdAt"`
	LastTriedAt  time.Time          `bson:"lastTriedAt"`
}
