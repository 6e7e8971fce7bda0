package workflow_test

import (
	"bytes"
	"context"
	"encoding/gob"
	"github.com/myrjola/fsvalidator/internal/ai"
	"github.com/myrjola/fsvalidator/internal/catalog"
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/myrjola/fsvalidator/internal/ingest"
	"github.com/myrjola/fsvalidator/internal/testhelpers"
	"github.com/myrjola/fsvalidator/internal/workflow"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
	"time"
)

type fakeIngestor struct {
	calls []string
	err   error
}

func (f *fakeIngestor) Extract(_ context.Context, data []byte) (ingest.Result, error) {
	f.calls = append(f.calls, string(data))
	if f.err != nil {
		return ingest.Result{Text: "", Pages: 0}, f.err
	}
	return ingest.Result{Text: "text of " + string(data), Pages: 1}, nil
}

type fakeAnalyzer struct {
	texts     []string
	questions []string
	err       error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, documentText string, question string) (string, error) {
	f.texts = append(f.texts, documentText)
	f.questions = append(f.questions, question)
	if f.err != nil {
		return "", f.err
	}
	return "answer to " + question, nil
}

type fixture struct {
	store    *workflow.Store
	ingestor *fakeIngestor
	analyzer *fakeAnalyzer
	catalog  *catalog.Catalog
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	f := &fixture{
		store:    nil,
		ingestor: &fakeIngestor{calls: nil, err: nil},
		analyzer: &fakeAnalyzer{texts: nil, questions: nil, err: nil},
		catalog:  cat,
		now:      time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time {
		f.now = f.now.Add(time.Second)
		return f.now
	}
	f.store = workflow.NewStore(cat, f.ingestor, f.analyzer, clock, testhelpers.NewLogger(testhelpers.NewWriter(t)))
	return f
}

func (f *fixture) basicQuestion(t *testing.T, i int) string {
	t.Helper()
	category, ok := f.catalog.Lookup("basic")
	require.True(t, ok)
	return category.Questions[i]
}

func TestStore_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("replacing the document recomputes text and clears selection", func(t *testing.T) {
		f := newFixture(t)
		var st workflow.State
		_, err := f.store.Upload(ctx, &st, "d1.pdf", []byte("D1"))
		require.NoError(t, err)
		require.NoError(t, f.store.SelectCategory(&st, "basic"))
		_, err = f.store.SelectQuestion(ctx, &st, f.basicQuestion(t, 0))
		require.NoError(t, err)

		doc, err := f.store.Upload(ctx, &st, "d2.pdf", []byte("D2"))
		require.NoError(t, err)
		require.Equal(t, "d2.pdf", doc.Name)
		require.Equal(t, []string{"D1", "D2"}, f.ingestor.calls)
		require.Equal(t, "text of D2", st.ExtractedText())
		require.Empty(t, st.Category())
		require.Empty(t, st.Question())
		require.Empty(t, st.Response())
		require.Len(t, st.History(), 1, "history survives document replacement")
	})

	t.Run("same document twice is extracted once", func(t *testing.T) {
		f := newFixture(t)
		var st workflow.State
		first, err := f.store.Upload(ctx, &st, "d1.pdf", []byte("D1"))
		require.NoError(t, err)
		require.NoError(t, f.store.SelectCategory(&st, "basic"))

		second, err := f.store.Upload(ctx, &st, "d1.pdf", []byte("D1"))
		require.NoError(t, err)
		require.Equal(t, first, second)
		require.Len(t, f.ingestor.calls, 1)
		require.Equal(t, "basic", st.Category(), "selection is kept")
	})

	t.Run("same name with different content is a new document", func(t *testing.T) {
		f := newFixture(t)
		var st workflow.State
		first, err := f.store.Upload(ctx, &st, "report.pdf", []byte("v1"))
		require.NoError(t, err)
		second, err := f.store.Upload(ctx, &st, "report.pdf", []byte("v2"))
		require.NoError(t, err)
		require.NotEqual(t, first.Digest, second.Digest)
		require.Len(t, f.ingestor.calls, 2)
		require.Equal(t, "text of v2", st.ExtractedText())
	})

	t.Run("failed extraction still allows questions", func(t *testing.T) {
		f := newFixture(t)
		f.ingestor.err = &ingest.Error{Cause: ingest.ErrNoPages, Pages: nil}
		var st workflow.State
		_, err := f.store.Upload(ctx, &st, "empty.pdf", []byte("nothing"))
		require.ErrorIs(t, err, ingest.ErrNoPages)
		require.True(t, st.Ready())
		require.Empty(t, st.ExtractedText())
		require.Equal(t, "extract text: document has no pages", st.IngestionError())

		require.NoError(t, f.store.SelectCategory(&st, "basic"))
		record, err := f.store.SelectQuestion(ctx, &st, f.basicQuestion(t, 1))
		require.NoError(t, err)
		require.False(t, record.Failed())
		require.Equal(t, []string{""}, f.analyzer.texts)
	})
}

func TestStore_SelectCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var st workflow.State

	require.ErrorIs(t, f.store.SelectCategory(&st, "basic"), workflow.ErrNoDocument)

	_, err := f.store.Upload(ctx, &st, "d1.pdf", []byte("D1"))
	require.NoError(t, err)
	require.ErrorIs(t, f.store.SelectCategory(&st, "nonexistent"), workflow.ErrUnknownCategory)

	require.NoError(t, f.store.SelectCategory(&st, "basic"))
	_, err = f.store.SelectQuestion(ctx, &st, f.basicQuestion(t, 0))
	require.NoError(t, err)
	require.NotEmpty(t, st.Question())

	for _, key := range []string{"basic", "advanced", "deepResearch"} {
		require.NoError(t, f.store.SelectCategory(&st, key))
		require.Equal(t, key, st.Category())
		require.Empty(t, st.Question(), "changing category clears the question")
		require.Empty(t, st.Response())
		_, ok := st.Current()
		require.False(t, ok)
	}
}

func TestStore_SelectQuestion(t *testing.T) {
	ctx := context.Background()

	t.Run("preconditions", func(t *testing.T) {
		f := newFixture(t)
		var st workflow.State
		question := f.basicQuestion(t, 0)

		_, err := f.store.SelectQuestion(ctx, &st, question)
		require.ErrorIs(t, err, workflow.ErrNoDocument)

		_, err = f.store.Upload(ctx, &st, "d1.pdf", []byte("D1"))
		require.NoError(t, err)
		_, err = f.store.SelectQuestion(ctx, &st, question)
		require.ErrorIs(t, err, workflow.ErrNoCategory)

		require.NoError(t, f.store.SelectCategory(&st, "basic"))
		_, err = f.store.SelectQuestion(ctx, &st, "Is this question in the catalog?")
		require.ErrorIs(t, err, workflow.ErrUnknownQuestion)

		require.NoError(t, f.store.SelectCategory(&st, "advanced"))
		_, err = f.store.SelectQuestion(ctx, &st, question)
		require.ErrorIs(t, err, workflow.ErrUnknownQuestion)

		require.Empty(t, f.analyzer.questions)
		require.Empty(t, st.History())
	})

	t.Run("history keeps every call in order", func(t *testing.T) {
		f := newFixture(t)
		var st workflow.State
		_, err := f.store.Upload(ctx, &st, "d1.pdf", []byte("D1"))
		require.NoError(t, err)
		require.NoError(t, f.store.SelectCategory(&st, "basic"))

		asked := []string{f.basicQuestion(t, 2), f.basicQuestion(t, 0), f.basicQuestion(t, 2)}
		for _, question := range asked {
			_, err = f.store.SelectQuestion(ctx, &st, question)
			require.NoError(t, err)
		}

		history := st.History()
		require.Len(t, history, len(asked))
		ids := make(map[string]bool)
		for i, record := range history {
			require.Equal(t, asked[i], record.Question)
			require.Equal(t, "answer to "+asked[i], record.Answer)
			require.Equal(t, "d1.pdf", record.DocumentName)
			ids[record.ID] = true
			if i > 0 {
				require.True(t, record.CreatedAt.After(history[i-1].CreatedAt))
			}
		}
		require.Len(t, ids, len(asked), "record IDs are unique")
		require.Equal(t, asked, f.analyzer.questions)
		require.Equal(t, "answer to "+asked[2], st.Response())

		current, ok := st.Current()
		require.True(t, ok)
		require.Equal(t, history[2].ID, current.ID)
	})

	t.Run("missing credential is recorded as a failure", func(t *testing.T) {
		f := newFixture(t)
		f.analyzer.err = ai.ErrNotConfigured
		var st workflow.State
		_, err := f.store.Upload(ctx, &st, "d1.pdf", []byte("D1"))
		require.NoError(t, err)
		require.NoError(t, f.store.SelectCategory(&st, "basic"))

		record, err := f.store.SelectQuestion(ctx, &st, f.basicQuestion(t, 0))
		require.NoError(t, err)
		require.True(t, record.Failed())
		require.Equal(t, workflow.FailureConfiguration, record.FailureKind)
		require.Contains(t, record.Failure, "not configured")
		require.Empty(t, record.Answer)
		require.Equal(t, record.Failure, st.Response())
		require.Len(t, st.History(), 1)
	})

	t.Run("remote failure is recorded as a failure", func(t *testing.T) {
		f := newFixture(t)
		f.analyzer.err = &ai.Error{Kind: ai.KindQuota, StatusCode: 429, Err: errors.New("quota exceeded")}
		var st workflow.State
		_, err := f.store.Upload(ctx, &st, "d1.pdf", []byte("D1"))
		require.NoError(t, err)
		require.NoError(t, f.store.SelectCategory(&st, "basic"))

		record, err := f.store.SelectQuestion(ctx, &st, f.basicQuestion(t, 0))
		require.NoError(t, err)
		require.Equal(t, workflow.FailureAnalysis, record.FailureKind)
		require.True(t, strings.HasPrefix(record.Failure, "Error: Failed to get response from OpenAI."))
		require.Contains(t, record.Failure, "quota exceeded")
	})
}

func TestState_gob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var st workflow.State
	_, err := f.store.Upload(ctx, &st, "d1.pdf", []byte("D1"))
	require.NoError(t, err)
	require.NoError(t, f.store.SelectCategory(&st, "basic"))
	_, err = f.store.SelectQuestion(ctx, &st, f.basicQuestion(t, 3))
	require.NoError(t, err)

	// Sessions store the state behind an interface value.
	gob.Register(workflow.State{})
	var buf bytes.Buffer
	var in any = st
	require.NoError(t, gob.NewEncoder(&buf).Encode(&in))
	var out any
	require.NoError(t, gob.NewDecoder(&buf).Decode(&out))

	decoded, ok := out.(workflow.State)
	require.True(t, ok)
	inDoc, _ := st.Document()
	outDoc, ok := decoded.Document()
	require.True(t, ok)
	require.Equal(t, inDoc.Digest, outDoc.Digest)
	require.True(t, inDoc.UploadedAt.Equal(outDoc.UploadedAt))
	require.Equal(t, st.ExtractedText(), decoded.ExtractedText())
	require.Equal(t, st.Category(), decoded.Category())
	require.Equal(t, st.Question(), decoded.Question())
	require.Equal(t, st.Response(), decoded.Response())
	require.Len(t, decoded.History(), 1)
	require.True(t, decoded.Ready())
}
