package generate

import (
	"fmt"
	"strings"
)

// Per-prompt character budgets for the source text, tuned to leave room for
// the model's output within its context window.
const (
	articleTextLimit = 12000
	defaultTextLimit = 10000
	socialTextLimit  = 8000
)

func clip(text string, limit int) string {
	if len(text) > limit {
		return text[:limit]
	}
	return text
}

// summaryPrompt builds the summary prompt for a style. Unknown styles get a
// plain summarization prompt.
func summaryPrompt(text, style string) string {
	switch style {
	case "article":
		return articlePrompt(text)
	case "concise":
		return "Provide a concise summary of the key points in bullet format using Markdown.\n\n" +
			clip(text, defaultTextLimit)
	case "eli5":
		return "Explain this like I'm 5 years old, using simple analogies and Markdown formatting.\n\n" +
			clip(text, defaultTextLimit)
	default:
		return "Summarize this content clearly.\n\n" + clip(text, defaultTextLimit)
	}
}

// articlePrompt turns a transcript into a beginner-friendly narrative
// article.
func articlePrompt(text string) string {
	return `You are a senior content creator who specializes in turning raw transcripts into deeply engaging, beginner-friendly articles.
Your job is to take the transcript I provide and transform it into a medium-length (8-10 min) article that absolute beginners can understand and enjoy.

Follow these instructions carefully:

1. Audience & Tone
- Write for absolute beginners with no prior knowledge of the topic.
- Use a tone that is friendly, conversational, and clear.
- Keep it professional but simple, and lightly motivational.

2. Style & Flow
- Create a hybrid narrative + tutorial article:
  - Start with a simple story or hook that helps readers instantly relate.
  - Gradually guide them into the core idea.
  - Break down concepts step-by-step with plain English.
  - Use short, clean paragraphs that breathe.

3. Visuals
- Include diagrams in text-friendly form: simple block diagrams, flowcharts with arrows, analogy-based illustrations.
- Use markdown code blocks for diagrams.

4. Structure
- Catchy title, short hook, step-by-step explanation with headings, a diagram or two, and a "Key Takeaways" section at the end.

5. Rules
- Produce a full article, 100% rewritten - no transcript wording repeated.
- Make the article worth reading to the end.

Here is the transcript:

` + clip(text, articleTextLimit)
}

// quizPrompt asks for a multiple-choice quiz as strict JSON.
func quizPrompt(text string) string {
	return `Create a 5-question multiple-choice quiz from this content. Return ONLY a JSON object of the form:
{"questions": [{"question": "...", "options": ["...", "...", "...", "..."], "correct_answer_index": 0, "explanation": "..."}]}
Each question must have exactly 4 options. No text outside the JSON.

Content:
` + clip(text, defaultTextLimit)
}

// flashcardPrompt asks for spaced-repetition cards as strict JSON.
func flashcardPrompt(text string) string {
	return `Create 5 spaced-repetition flashcards from this content. Return ONLY a JSON object of the form:
{"flashcards": [{"front": "...", "back": "..."}]}
No text outside the JSON.

Content:
` + clip(text, defaultTextLimit)
}

var socialPrompts = map[string]string{
	"thought_leader": "Create a LinkedIn post in a thought leadership style. Start with a hook, share insights, and end with a question to engage the audience.",
	"technical":      "Create a technical LinkedIn post explaining key concepts. Use clear structure with bullet points.",
	"storytelling":   "Create a LinkedIn post using storytelling. Share a narrative that connects to the main ideas.",
	"viral":          "Create an engaging Instagram caption with emojis. Make it shareable and include relevant hashtags.",
	"carousel":       "Create a carousel post script with 5 slides. Each slide should have a title and brief text.",
}

// socialPrompt builds a platform post prompt. Unknown styles fall back to
// the thought-leader style.
func socialPrompt(text, style string) string {
	p, ok := socialPrompts[style]
	if !ok {
		p = socialPrompts["thought_leader"]
	}
	return p + "\n\nSource content:\n" + clip(text, socialTextLimit)
}

// socialPlatform maps a style to the platform the post targets.
func socialPlatform(style string) string {
	switch style {
	case "viral", "carousel":
		return "instagram"
	default:
		return "linkedin"
	}
}

// diagramPrompt asks for Mermaid source of the given diagram type.
func diagramPrompt(text, diagramType string) string {
	if diagramType == "" {
		diagramType = "flowchart"
	}
	return fmt.Sprintf("Generate a Mermaid.js %s diagram based on this content. Return ONLY the mermaid code, no explanation.\n\nContent:\n%s",
		diagramType, clip(text, socialTextLimit))
}

// stripCodeFence removes a surrounding markdown code fence, with or without
// a language tag, which models often add despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
