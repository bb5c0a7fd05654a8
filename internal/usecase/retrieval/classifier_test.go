package retrieval

import (
	"testing"

	"github.com/kailas-cloud/docdex/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     domain.QueryKind
	}{
		{"plain factual question", "What is the retention period?", domain.KindFactual},
		{"question mark alone", "the budget for next year?", domain.KindFactual},
		{"interrogative opener without mark", "when does the policy take effect", domain.KindFactual},
		{"swedish factual", "vad säger rapporten om intäkter?", domain.KindFactual},
		{"summary", "give me a summary of the report", domain.KindSummary},
		{"swedish summary", "sammanfatta dokumentet", domain.KindSummary},
		{"extensive summary", "give me a detailed summary of the findings", domain.KindExtensiveSummary},
		{"extensive without summary stays factual", "what are the detailed requirements?", domain.KindFactual},
		{"imperative statement", "tell me something interesting", domain.KindStandard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.question).Kind(); got != tt.want {
				t.Errorf("Classify(%q).Kind() = %s, expected %s", tt.question, got, tt.want)
			}
		})
	}
}

func TestClassify_DocumentSpecific(t *testing.T) {
	if !Classify("what does the document say about pricing?").IsDocumentSpecific {
		t.Error("expected document-specific classification")
	}
	if !Classify("vad står det i dokumentet?").IsDocumentSpecific {
		t.Error("expected document-specific classification for Swedish phrasing")
	}
	if Classify("what is the pricing?").IsDocumentSpecific {
		t.Error("generic question misclassified as document-specific")
	}
}

func TestIsListingQuery(t *testing.T) {
	listing := []string{
		"What documents do you have?",
		"which files are available",
		"list all documents",
		"vilka dokument finns?",
	}
	for _, q := range listing {
		if !isListingQuery(q) {
			t.Errorf("isListingQuery(%q) = false, expected true", q)
		}
	}
	if isListingQuery("what does the document say?") {
		t.Error("content question misclassified as listing")
	}
}
