package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
	"github.com/sngm3741/form-intake/api/internal/intake/format"
)

// SubmissionServiceConfig defines dependencies of the submission command service.
type SubmissionServiceConfig struct {
	Formatter *format.Formatter
	Sinks     []Sink
	// Notifier は全シンク成功後に呼ばれる。失敗しても送信自体は成功扱い。
	Notifier Sink
	Failures FailedDeliveryRepository
	Metrics  Recorder
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

// NewSubmissionCommandService wires sinks, the notifier and the failure log.
func NewSubmissionCommandService(cfg SubmissionServiceConfig) SubmissionCommandService {
	formatter := cfg.Formatter
	if formatter == nil {
		formatter = format.NewFormatter(nil, nil)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	targets := make(map[string]Sink, len(cfg.Sinks)+1)
	for _, sink := range cfg.Sinks {
		targets[sink.Name()] = sink
	}
	if cfg.Notifier != nil {
		targets[cfg.Notifier.Name()] = cfg.Notifier
	}

	return &submissionCommandService{
		formatter: formatter,
		sinks:     append([]Sink(nil), cfg.Sinks...),
		notifier:  cfg.Notifier,
		targets:   targets,
		failures:  cfg.Failures,
		metrics:   cfg.Metrics,
		logger:    logger,
		now:       now,
	}
}

type submissionCommandService struct {
	formatter *format.Formatter
	sinks     []Sink
	notifier  Sink
	targets   map[string]Sink
	failures  FailedDeliveryRepository
	metrics   Recorder
	logger    logrus.FieldLogger
	now       func() time.Time
}

// Submit は送信 JSON を解析・整形し、設定された全シンクへ順に書き込む。
// いずれかのシンクが失敗した場合は失敗記録を残したうえでエラーを返す。
func (s *submissionCommandService) Submit(ctx context.Context, body []byte) (*domain.Record, error) {
	record, err := domain.ParseRecord(body)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(record.ID) == "" {
		return nil, ErrMissingID
	}
	record.SubmittedAt = s.now().UTC()

	rendered := s.formatter.Render(record)

	var failed []error
	for _, sink := range s.sinks {
		if err := s.deliver(ctx, sink, record, rendered); err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	if len(failed) > 0 {
		return record, &DeliveryError{Errs: failed}
	}

	if s.notifier != nil {
		if err := s.deliver(ctx, s.notifier, record, rendered); err != nil {
			s.logger.Printf("管理者通知の送信に失敗: %v", err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"submissionId": record.ID,
		"fields":       len(record.Fields),
		"sinks":        len(s.sinks),
	}).Info("submission delivered")

	return record, nil
}

func (s *submissionCommandService) deliver(ctx context.Context, sink Sink, record *domain.Record, rendered format.Rendered) error {
	err := sink.Deliver(ctx, record, rendered)
	if s.metrics != nil {
		s.metrics.ObserveDelivery(sink.Name(), err)
	}
	if err != nil {
		s.recordFailure(ctx, sink.Name(), record, err)
	}
	return err
}

func (s *submissionCommandService) recordFailure(ctx context.Context, sink string, record *domain.Record, cause error) {
	s.logger.WithFields(logrus.Fields{
		"submissionId": record.ID,
		"sink":         sink,
	}).Errorf("シンクへの書き込みに失敗: %v", cause)

	if s.failures == nil {
		return
	}
	now := s.now().UTC()
	failure := &domain.FailedDelivery{
		Sink:         sink,
		SubmissionID: record.ID,
		Payload:      record.Raw,
		Error:        cause.Error(),
		Attempts:     1,
		Status:       domain.FailureStatusPending,
		SubmittedAt:  record.SubmittedAt,
		CreatedAt:    now,
		LastTriedAt:  now,
	}
	// リクエストがキャンセル済みでも失敗記録は保存する。
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.failures.Record(saveCtx, failure); err != nil {
		s.logger.Printf("failed_deliveries への保存に失敗: %v", err)
	}
}

// Retry re-delivers a recorded failure to the sink that rejected it.
func (s *submissionCommandService) Retry(ctx context.Context, failureID string) error {
	if s.failures == nil {
		return ErrNotFound
	}
	failure, err := s.failures.FindByID(ctx, failureID)
	if err != nil {
		return err
	}
	if failure.Status == domain.FailureStatusResolved {
		return ErrAlreadyResolved
	}
	target, ok := s.targets[failure.Sink]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSink, failure.Sink)
	}

	record, err := domain.ParseRecord(failure.Payload)
	if err != nil {
		return fmt.Errorf("保存済みペイロードの解析に失敗: %w", err)
	}
	record.SubmittedAt = failure.SubmittedAt

	err = target.Deliver(ctx, record, s.formatter.Render(record))
	if s.metrics != nil {
		s.metrics.ObserveDelivery(target.Name(), err)
	}
	if err != nil {
		if markErr := s.failures.MarkAttempt(ctx, failure.ID, err.Error()); markErr != nil {
			s.logger.Printf("再送結果の保存に失敗: %v", markErr)
		}
		return fmt.Errorf("%s: %w", target.Name(), err)
	}
	return s.failures.MarkResolved(ctx, failure.ID)
}

// DeliveryError collects the errors of every sink that failed for one submission.
type DeliveryError struct {
	Errs []error
}

func (e *DeliveryError) Error() string {
	parts := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

func (e *DeliveryError) Unwrap() []error {
	return e.Errs
}

// NewSubmissionQueryService reads submissions and markdown from the first reader that has them.
func NewSubmissionQueryService(readers []SubmissionReader, markdown []MarkdownReader, failures FailedDeliveryRepository) SubmissionQueryService {
	filtered := make([]SubmissionReader, 0, len(readers))
	for _, reader := range readers {
		if reader != nil {
			filtered = append(filtered, reader)
		}
	}
	documents := make([]MarkdownReader, 0, len(markdown))
	for _, reader := range markdown {
		if reader != nil {
			documents = append(documents, reader)
		}
	}
	return &submissionQueryService{readers: filtered, markdown: documents, failures: failures}
}

type submissionQueryService struct {
	readers  []SubmissionReader
	markdown []MarkdownReader
	failures FailedDeliveryRepository
}

func (s *submissionQueryService) Detail(ctx context.Context, id string) (*domain.StoredSubmission, error) {
	for _, reader := range s.readers {
		stored, err := reader.FindSubmission(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return stored, nil
	}
	return nil, ErrNotFound
}

func (s *submissionQueryService) Markdown(ctx context.Context, id string) (string, error) {
	for _, reader := range s.markdown {
		doc, err := reader.FindMarkdown(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		return doc, nil
	}
	return "", ErrNotFound
}

func (s *submissionQueryService) Failures(ctx context.Context, paging Paging) ([]domain.FailedDelivery, error) {
	if s.failures == nil {
		return []domain.FailedDelivery{}, nil
	}
	return s.failures.List(ctx, paging)
}
