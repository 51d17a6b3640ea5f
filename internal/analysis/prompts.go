package analysis

import "fmt"

const promptContentLimit = 3000

func enrichPrompt(title, content string) string {
	return fmt.Sprintf(`You are a tech news editor. Analyze the following article title and content/abstract.

Title: %s
Content: %s (truncated)

Task:
1. Summarize the key points in under 100 words.
2. Provide a "Why this matters" insight (1-2 sentences explaining the impact).
3. Categorize strictly into ONE of: ['AI', 'Computer Science', 'Software Engineering', 'Research'].
4. Rate 'viability_score' (0-100) based on relevance to a general software developer/researcher.

Output strictly valid JSON with keys: "summary", "category", "viability_score".
IMPORTANT: In the "summary" field, combine the summary and the "Why this matters" insight.
Format it as: "[Summary text...]\n\n**Why this matters:** [Insight text...]"
Do not include markdown blocks in the outer JSON.`, title, truncate(content, promptContentLimit))
}

func quotePrompt(text string) string {
	return fmt.Sprintf(`You read tech news looking for notable statements made by a named person.

Text: %s

If the text contains a direct, quotable statement attributed to a specific person, answer with
{"found": true, "text": "<the statement>", "author": "<full name>", "role": "<title or company, may be empty>"}.
Otherwise answer with {"found": false}.
Output strictly valid JSON and nothing else.`, truncate(text, promptContentLimit))
}

func pollPrompt(contextText string) string {
	return fmt.Sprintf(`You run a daily community poll for software developers and researchers.
Here are today's top headlines:
%s

Write one engaging, debatable question inspired by these headlines and 3 short answer options.
Output strictly valid JSON of the form
{"question": "...", "options": [{"id": "a", "text": "...", "votes": 0}, {"id": "b", "text": "...", "votes": 0}, {"id": "c", "text": "...", "votes": 0}]}.`, contextText)
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
