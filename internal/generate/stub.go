package generate

import (
	"context"
	"encoding/json"
	"strings"
)

// StubModelClient returns mock LLM responses (for development/testing).
type StubModelClient struct{}

func (m *StubModelClient) Complete(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "multiple-choice quiz"):
		b, _ := json.Marshal(QuizPayload{Questions: []QuizQuestion{
			{
				Question:           "[Stub] What is the main topic of this content?",
				Options:            []string{"The core concept it explains", "An unrelated subject", "Nothing in particular", "A random anecdote"},
				CorrectAnswerIndex: 0,
				Explanation:        "The content focuses on its core concept throughout.",
			},
			{
				Question:           "[Stub] What does the content recommend?",
				Options:            []string{"Ignoring the fundamentals", "Applying the discussed approach", "Avoiding practice", "None of the above"},
				CorrectAnswerIndex: 1,
				Explanation:        "The recommendation follows directly from the examples given.",
			},
		}})
		return string(b), nil

	case strings.Contains(prompt, "spaced-repetition flashcards"):
		b, _ := json.Marshal(FlashcardPayload{Flashcards: []Flashcard{
			{Front: "[Stub] What is the key idea?", Back: "The central concept the content explains."},
			{Front: "[Stub] Why does it matter?", Back: "It underpins the practical examples discussed."},
		}})
		return string(b), nil

	case strings.Contains(prompt, "Mermaid.js"):
		return "```mermaid\ngraph TD\n  A[Source Content] --> B[Key Concept]\n  B --> C[Practical Application]\n```", nil

	case strings.Contains(prompt, "senior content creator"):
		return "# A Beginner's Guide to the Topic\n\n[Stub] Imagine you are learning this for the first time. This article walks through the core idea step by step, with simple analogies and a short recap.\n\n## Key Takeaways\n- The core concept is approachable.\n- Practice makes it stick.", nil

	case strings.Contains(prompt, "LinkedIn") || strings.Contains(prompt, "Instagram"):
		return "[Stub] Here's what I learned from this content - three insights worth sharing. What would you add?", nil

	default:
		return "[Stub] This content covers its main topic clearly, supports it with examples, and closes with practical takeaways.", nil
	}
}
