package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/docdex/internal/domain"
)

type mockCompleter struct {
	prompt string
	reply  string
	err    error
}

func (m *mockCompleter) Complete(_ context.Context, prompt string) (string, error) {
	m.prompt = prompt
	return m.reply, m.err
}

func TestCompose(t *testing.T) {
	completer := &mockCompleter{reply: "  The retention period is 7 years.\n"}
	composer := NewComposer(completer, nil)

	answer, err := composer.Compose(context.Background(),
		"What is the retention period?",
		"[Policy, section 3]\nRecords are kept 7 years.",
		[]domain.SearchResult{
			{DocumentID: "doc-1", DocumentTitle: "Policy", DocumentURL: "https://x/policy.pdf", ChunkIndex: 2},
			{DocumentID: "doc-1", DocumentTitle: "Policy", ChunkIndex: 5},
			{DocumentID: "doc-2", DocumentTitle: "Handbook", ChunkIndex: 0},
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if answer.Text != "The retention period is 7 years." {
		t.Errorf("answer text = %q, expected trimmed completion", answer.Text)
	}
	if len(answer.References) != 2 {
		t.Fatalf("expected 2 deduplicated references, got %d", len(answer.References))
	}
	if answer.References[0].DocumentID != "doc-1" || answer.References[1].DocumentID != "doc-2" {
		t.Errorf("references out of retrieval order: %+v", answer.References)
	}
	if answer.References[0].URL != "https://x/policy.pdf" {
		t.Errorf("reference URL lost: %+v", answer.References[0])
	}

	if !strings.Contains(completer.prompt, "Records are kept 7 years.") {
		t.Error("prompt missing the retrieved context")
	}
	if !strings.Contains(completer.prompt, "What is the retention period?") {
		t.Error("prompt missing the question")
	}
}

func TestCompose_CompleterErrorSurfaces(t *testing.T) {
	boom := errors.New("model overloaded")
	composer := NewComposer(&mockCompleter{err: boom}, nil)

	_, err := composer.Compose(context.Background(), "q", "ctx", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected completer error to surface, got %v", err)
	}
}
