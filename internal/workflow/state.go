// Package workflow holds the state of one user's validation session and the transitions between its steps:
// upload a document, pick a category, ask a question.
package workflow

import (
	"bytes"
	"encoding/gob"
	"github.com/myrjola/fsvalidator/internal/errors"
	"slices"
	"time"
)

// Document is an uploaded file. Name and Digest together identify it.
type Document struct {
	Name       string
	Digest     string
	Size       int
	Pages      int
	UploadedAt time.Time
}

// SameAs reports whether d and other are the same upload.
func (d Document) SameAs(other Document) bool {
	return d.Name == other.Name && d.Digest == other.Digest
}

type FailureKind string

const (
	FailureConfiguration FailureKind = "configuration"
	FailureAnalysis      FailureKind = "analysis"
)

// Record is one answered or failed question. Records are never modified after they are appended to the history.
type Record struct {
	ID             string
	Question       string
	Answer         string
	Failure        string
	FailureKind    FailureKind
	DocumentName   string
	DocumentDigest string
	CreatedAt      time.Time
}

func (r Record) Failed() bool {
	return r.FailureKind != ""
}

// Text is the answer or, for failed records, the failure message.
func (r Record) Text() string {
	if r.Failed() {
		return r.Failure
	}
	return r.Answer
}

var ErrTextAlreadySet = errors.NewSentinel("text already extracted for document")

// State is the workflow of one session. The zero value is an empty session.
//
// State has a single writer. Mutations happen through Store, which enforces the ordering of the steps.
type State struct {
	document       *Document
	text           string
	textSet        bool
	ingestionError string
	category       string
	question       string
	response       string
	history        []Record
}

// Document returns the current document and whether one has been uploaded.
func (s *State) Document() (Document, bool) {
	if s.document == nil {
		return Document{}, false
	}
	return *s.document, true
}

func (s *State) ExtractedText() string {
	return s.text
}

// IngestionError is the message of the error that happened when extracting the text of the current document.
func (s *State) IngestionError() string {
	return s.ingestionError
}

func (s *State) Category() string {
	return s.category
}

func (s *State) Question() string {
	return s.question
}

// Response is the latest answer or failure message for the selected question.
func (s *State) Response() string {
	return s.response
}

// History returns a copy of all records in the order they were created.
func (s *State) History() []Record {
	return slices.Clone(s.history)
}

// Ready reports whether the text of the current document is available for analysis.
func (s *State) Ready() bool {
	return s.document != nil && s.textSet
}

// Current returns the record shown as the answer to the selected question.
func (s *State) Current() (Record, bool) {
	if s.question == "" || len(s.history) == 0 {
		return Record{}, false
	}
	last := s.history[len(s.history)-1]
	if last.Question != s.question || last.Text() != s.response {
		return Record{}, false
	}
	return last, true
}

// setDocument replaces the document and resets everything derived from it except the history. It returns false
// when doc is the document already in place.
func (s *State) setDocument(doc Document) bool {
	if s.document != nil && s.document.SameAs(doc) {
		return false
	}
	s.document = &doc
	s.text = ""
	s.textSet = false
	s.ingestionError = ""
	s.category = ""
	s.question = ""
	s.response = ""
	return true
}

func (s *State) setExtractedText(text string, ingestionErr error) error {
	if s.textSet {
		return ErrTextAlreadySet
	}
	s.text = text
	s.textSet = true
	if ingestionErr != nil {
		s.ingestionError = ingestionErr.Error()
	}
	return nil
}

func (s *State) setPages(pages int) {
	if s.document != nil {
		s.document.Pages = pages
	}
}

func (s *State) selectCategory(key string) {
	s.category = key
	s.question = ""
	s.response = ""
}

func (s *State) selectQuestion(question string) {
	s.question = question
	s.response = ""
}

func (s *State) appendRecord(r Record) {
	s.history = append(s.history, r)
	s.response = r.Text()
}

// snapshot is the serialised form of State.
type snapshot struct {
	Document       *Document
	Text           string
	TextSet        bool
	IngestionError string
	Category       string
	Question       string
	Response       string
	History        []Record
}

// GobEncode lets the session manager persist State.
func (s State) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(snapshot{
		Document:       s.document,
		Text:           s.text,
		TextSet:        s.textSet,
		IngestionError: s.ingestionError,
		Category:       s.category,
		Question:       s.question,
		Response:       s.response,
		History:        s.history,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode workflow state")
	}
	return buf.Bytes(), nil
}

func (s *State) GobDecode(data []byte) error {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return errors.Wrap(err, "decode workflow state")
	}
	*s = State{
		document:       snap.Document,
		text:           snap.Text,
		textSet:        snap.TextSet,
		ingestionError: snap.IngestionError,
		category:       snap.Category,
		question:       snap.Question,
		response:       snap.Response,
		history:        snap.History,
	}
	return nil
}
