package tokens

import (
	"strings"
	"testing"

	"github.com/tiktoken-go/tokenizer"
)

func TestEstimator_Heuristic(t *testing.T) {
	e := NewHeuristic()

	tests := []struct {
		name  string
		text  string
		model string
		want  int
	}{
		{"empty text floors at one", "", "gemini-2.5-flash", 1},
		{"short text floors at one", "hi", "llama-3.1-8b-instant", 1},
		{"gemini ratio", strings.Repeat("a", 40), "gemini-2.5-flash", 10},
		{"groq ratio", strings.Repeat("a", 35), "llama-3.3-70b-versatile", 10},
		{"groq ratio rounds down", strings.Repeat("a", 38), "mistral-saba-24b", 10},
		{"unknown model uses default", strings.Repeat("a", 41), "some-other-model", 10},
		{"empty model uses default", strings.Repeat("a", 8), "", 2},
		{"runes not bytes", strings.Repeat("é", 8), "gemini-2.0-flash", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Heuristic(tt.text, tt.model); got != tt.want {
				t.Errorf("Heuristic(%q) = %d, want %d", tt.model, got, tt.want)
			}
		})
	}
}

func TestEstimator_CharsPerToken(t *testing.T) {
	e := NewHeuristic()

	tests := []struct {
		model string
		want  float64
	}{
		{"llama-3.1-8b-instant", 3.5},
		{"meta-llama/llama-4-scout-17b-16e-instruct", 3.5},
		{"moonshotai/kimi-k2-instruct", 3.5},
		{"deepseek-r1-distill-llama-70b", 3.5},
		{"Gemini-2.5-Pro", 4.0},
		{"gpt-4o", DefaultCharsPerToken},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := e.CharsPerToken(tt.model); got != tt.want {
				t.Errorf("CharsPerToken(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestEstimator_Estimate(t *testing.T) {
	e := New()

	tests := []struct {
		name      string
		text      string
		minTokens int
		maxTokens int
	}{
		{"empty", "", 1, 1},
		{"greeting", "Hello, how are you today?", 5, 10},
		{"sentence", "The quick brown fox jumps over the lazy dog.", 8, 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Estimate(tt.text, "llama-3.1-8b-instant")
			if got < tt.minTokens || got > tt.maxTokens {
				t.Errorf("Estimate() = %d, want between %d and %d", got, tt.minTokens, tt.maxTokens)
			}
		})
	}
}

func TestEstimator_FallsBackWhenTokenizerUnavailable(t *testing.T) {
	e := &Estimator{
		exact:  NewExactCounterForEncoding(tokenizer.Encoding("no-such-encoding")),
		ratios: defaultRatios,
	}

	if got := e.Estimate(strings.Repeat("a", 40), "gemini-2.5-flash"); got != 10 {
		t.Errorf("Estimate() = %d, want heuristic 10", got)
	}
}

func TestExactCounter_CountText(t *testing.T) {
	c := NewExactCounter()

	n, err := c.CountText("hello world")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountText() = %d, want 2", n)
	}
}

func TestModelMatcher(t *testing.T) {
	m := NewModelMatcher([]string{"gemini"}, []string{"exact-model"})

	tests := []struct {
		model string
		want  bool
	}{
		{"gemini-2.5-pro", true},
		{"exact-model", true},
		{"exact-model-2", false},
		{"llama-3.1-8b-instant", false},
	}

	for _, tt := range tests {
		if got := m.Matches(tt.model); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
