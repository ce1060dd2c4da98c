package ai

import (
	"context"
	"strings"
	"testing"
)

func TestDraftUnconfiguredReturnsFallback(t *testing.T) {
	client, err := NewGeminiClient(context.Background(), &GeminiConfig{})
	if err != nil {
		t.Fatalf("NewGeminiClient error: %v", err)
	}
	if client.IsConfigured() {
		t.Fatal("client without API key must not be configured")
	}

	result := NewOPRDrafter(client).Draft(context.Background(), DraftRequest{
		Aktiviti: "Sukan Tahunan",
		Objektif: "Memupuk semangat kesukanan",
	})

	if result.Penambahbaikan != FallbackPenambahbaikan {
		t.Fatalf("penambahbaikan=%q, want fallback", result.Penambahbaikan)
	}
	if result.Refleksi != FallbackRefleksi {
		t.Fatalf("refleksi=%q, want fallback", result.Refleksi)
	}
}

func TestBoundWords(t *testing.T) {
	long := strings.Repeat("perkataan ", 80)
	bounded := boundWords(long, maxDraftWords)
	if got := len(strings.Fields(bounded)); got != maxDraftWords {
		t.Fatalf("bounded to %d words, want %d", got, maxDraftWords)
	}

	short := "Objektif tercapai."
	if boundWords(short, maxDraftWords) != short {
		t.Fatal("short text must pass through unchanged")
	}
}

func TestBuildPromptIncludesSimilarReports(t *testing.T) {
	d := NewOPRDrafter(&GeminiClient{})
	prompt := d.buildPrompt(DraftRequest{
		Aktiviti:       "Gotong-royong perdana",
		SimilarReports: []string{"Gotong-royong 2023 (HEM, 2023-03-12)"},
	})
	if !strings.Contains(prompt, "Gotong-royong perdana") {
		t.Fatal("prompt lacks form context")
	}
	if !strings.Contains(prompt, "RUJUKAN") || !strings.Contains(prompt, "Gotong-royong 2023") {
		t.Fatal("prompt lacks similar-report references")
	}
}
