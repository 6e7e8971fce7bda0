package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"github.com/google/uuid"
	"github.com/myrjola/fsvalidator/internal/ai"
	"github.com/myrjola/fsvalidator/internal/catalog"
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/myrjola/fsvalidator/internal/ingest"
	"log/slog"
	"time"
)

var (
	ErrNoDocument      = errors.NewSentinel("no document uploaded")
	ErrNoCategory      = errors.NewSentinel("no category selected")
	ErrUnknownCategory = errors.NewSentinel("unknown category")
	ErrUnknownQuestion = errors.NewSentinel("question not in selected category")
	ErrTextPending     = errors.NewSentinel("document text not extracted yet")
)

const notConfiguredMessage = "Error: OpenAI API key not configured. Set OPENAI_API_KEY to enable analysis."

type Ingestor interface {
	Extract(ctx context.Context, data []byte) (ingest.Result, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, documentText string, question string) (string, error)
}

// Store performs the workflow transitions on a State.
type Store struct {
	catalog  *catalog.Catalog
	ingestor Ingestor
	analyzer Analyzer
	now      func() time.Time
	logger   *slog.Logger
}

// NewStore creates a Store. A nil now defaults to time.Now.
func NewStore(
	cat *catalog.Catalog,
	ingestor Ingestor,
	analyzer Analyzer,
	now func() time.Time,
	logger *slog.Logger,
) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		catalog:  cat,
		ingestor: ingestor,
		analyzer: analyzer,
		now:      now,
		logger:   logger,
	}
}

// Upload makes data the current document of st and extracts its text.
//
// Uploading the document already in place changes nothing. Extraction failures don't fail the upload: the state
// records the failure and the error is returned for reporting only.
func (s *Store) Upload(ctx context.Context, st *State, name string, data []byte) (Document, error) {
	sum := sha256.Sum256(data)
	doc := Document{
		Name:       name,
		Digest:     hex.EncodeToString(sum[:]),
		Size:       len(data),
		Pages:      0,
		UploadedAt: s.now(),
	}
	if !st.setDocument(doc) {
		current, _ := st.Document()
		s.logger.LogAttrs(ctx, slog.LevelDebug, "document already uploaded", slog.String("document", name))
		return current, nil
	}

	result, extractErr := s.ingestor.Extract(ctx, data)
	st.setPages(result.Pages)
	if err := st.setExtractedText(result.Text, extractErr); err != nil {
		return doc, errors.Wrap(err, "set extracted text")
	}
	doc, _ = st.Document()

	attrs := []slog.Attr{
		slog.String("document", doc.Name),
		slog.String("digest", doc.Digest),
		slog.Int("pages", doc.Pages),
		slog.Int("chars", len(result.Text)),
	}
	if extractErr != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "text extraction failed", append(attrs, errors.SlogError(extractErr))...)
		return doc, extractErr
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "document uploaded", attrs...)
	return doc, nil
}

func (s *Store) SelectCategory(st *State, key string) error {
	if _, ok := st.Document(); !ok {
		return ErrNoDocument
	}
	if _, ok := s.catalog.Lookup(key); !ok {
		return errors.Wrap(ErrUnknownCategory, "select category", slog.String("category", key))
	}
	st.selectCategory(key)
	return nil
}

// SelectQuestion asks the analyzer question about the current document and appends the outcome to the history.
//
// Errors are returned only for questions that cannot be asked in the current state. A failed analysis is recorded
// in the returned Record instead.
func (s *Store) SelectQuestion(ctx context.Context, st *State, question string) (Record, error) {
	doc, ok := st.Document()
	if !ok {
		return Record{}, ErrNoDocument
	}
	if st.Category() == "" {
		return Record{}, ErrNoCategory
	}
	category, ok := s.catalog.Lookup(st.Category())
	if !ok || !category.Contains(question) {
		return Record{}, errors.Wrap(ErrUnknownQuestion, "select question", slog.String("category", st.Category()))
	}
	if !st.Ready() {
		return Record{}, ErrTextPending
	}
	st.selectQuestion(question)

	record := Record{
		ID:             uuid.NewString(),
		Question:       question,
		Answer:         "",
		Failure:        "",
		FailureKind:    "",
		DocumentName:   doc.Name,
		DocumentDigest: doc.Digest,
		CreatedAt:      time.Time{},
	}
	answer, err := s.analyzer.Analyze(ctx, st.ExtractedText(), question)
	record.CreatedAt = s.now()
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		record.FailureKind = FailureConfiguration
		record.Failure = notConfiguredMessage
	case err != nil:
		record.FailureKind = FailureAnalysis
		record.Failure = "Error: Failed to get response from OpenAI. " + err.Error()
		s.logger.LogAttrs(ctx, slog.LevelWarn, "analysis failed",
			slog.String("record", record.ID), errors.SlogError(err))
	default:
		record.Answer = answer
	}
	st.appendRecord(record)
	return record, nil
}
