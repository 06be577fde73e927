package generate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedError marks a model response that could not be parsed into the
// expected payload shape. It is not retryable: the request succeeded, the
// output is just unusable.
type MalformedError struct {
	Kind   string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s response: %s", e.Kind, e.Reason)
}

// QuizQuestion is one multiple-choice question.
type QuizQuestion struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correct_answer_index"`
	Explanation        string   `json:"explanation,omitempty"`
}

// QuizPayload is the artifact payload for kind "quiz".
type QuizPayload struct {
	Questions []QuizQuestion `json:"questions"`
}

// Flashcard is one front/back card.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// FlashcardPayload is the artifact payload for kind "flashcard".
type FlashcardPayload struct {
	Flashcards []Flashcard `json:"flashcards"`
}

// SummaryPayload is the artifact payload for kind "summary".
type SummaryPayload struct {
	Text  string `json:"text"`
	Style string `json:"style"`
}

// ArticlePayload is the artifact payload for kind "article".
type ArticlePayload struct {
	Title           string `json:"title"`
	Content         string `json:"content"`
	Excerpt         string `json:"excerpt"`
	ReadTimeMinutes int    `json:"read_time_minutes"`
}

// SocialPayload is the artifact payload for kind "social_media".
type SocialPayload struct {
	Text     string `json:"text"`
	Platform string `json:"platform"`
	Style    string `json:"style"`
}

// DiagramPayload is the artifact payload for kind "diagram".
type DiagramPayload struct {
	Mermaid     string `json:"mermaid"`
	DiagramType string `json:"diagram_type"`
}

// parseQuiz validates the model's JSON into a QuizPayload.
func parseQuiz(raw string) (*QuizPayload, error) {
	var p QuizPayload
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &p); err != nil {
		return nil, &MalformedError{Kind: "quiz", Reason: err.Error()}
	}
	if len(p.Questions) == 0 {
		return nil, &MalformedError{Kind: "quiz", Reason: "no questions"}
	}
	for i, q := range p.Questions {
		if q.Question == "" || len(q.Options) < 2 {
			return nil, &MalformedError{Kind: "quiz", Reason: fmt.Sprintf("question %d incomplete", i+1)}
		}
		if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
			return nil, &MalformedError{Kind: "quiz", Reason: fmt.Sprintf("question %d answer index out of range", i+1)}
		}
	}
	return &p, nil
}

// parseFlashcards validates the model's JSON into a FlashcardPayload. A bare
// JSON array of cards is accepted too.
func parseFlashcards(raw string) (*FlashcardPayload, error) {
	cleaned := stripCodeFence(raw)
	var p FlashcardPayload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil || len(p.Flashcards) == 0 {
		var cards []Flashcard
		if err2 := json.Unmarshal([]byte(cleaned), &cards); err2 != nil || len(cards) == 0 {
			return nil, &MalformedError{Kind: "flashcard", Reason: "no flashcards"}
		}
		p.Flashcards = cards
	}
	for i, c := range p.Flashcards {
		if c.Front == "" || c.Back == "" {
			return nil, &MalformedError{Kind: "flashcard", Reason: fmt.Sprintf("card %d incomplete", i+1)}
		}
	}
	return &p, nil
}

// buildArticle wraps the model's markdown into an ArticlePayload, deriving
// title, excerpt and read time from the content.
func buildArticle(raw string) (*ArticlePayload, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return nil, &MalformedError{Kind: "article", Reason: "empty response"}
	}

	title := "Article"
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "# ") {
			title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			break
		}
	}

	excerpt := content
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}

	words := len(strings.Fields(content))
	readTime := (words + 199) / 200
	if readTime < 1 {
		readTime = 1
	}

	return &ArticlePayload{
		Title:           title,
		Content:         content,
		Excerpt:         excerpt,
		ReadTimeMinutes: readTime,
	}, nil
}
