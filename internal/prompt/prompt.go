package prompt

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Archetype is the format of a generated question.
type Archetype string

const (
	MultipleChoice Archetype = "Multiple Choice"
	FillInTheBlank Archetype = "Fill-in-the-Blank"
	OpenEnded      Archetype = "Open-Ended"
)

// Archetypes lists every question format in draw order.
var Archetypes = []Archetype{MultipleChoice, FillInTheBlank, OpenEnded}

// RandomArchetype picks a question format uniformly.
func RandomArchetype(rng *rand.Rand) Archetype {
	return Archetypes[rng.IntN(len(Archetypes))]
}

// Builder renders question and grading prompts.
type Builder struct {
	Role     string // persona the model answers as
	Language string // output language for questions and feedback
}

// DefaultBuilder mirrors the obstetrics & gynecology study deck.
func DefaultBuilder() Builder {
	return Builder{Role: "Gynecology Professor", Language: "Hebrew"}
}

var archetypeInstructions = map[Archetype]string{
	MultipleChoice: `Create a challenging Multiple Choice Question (MCQ).
1. Provide the question stem.
2. Provide 4 distinct options labeled A, B, C, D.
3. Do NOT reveal the correct answer yet.
4. Ensure the options are plausible, and provide enough context.`,

	FillInTheBlank: `Create a 'Fill-in-the-Blank' sentence.
1. Take a key clinical sentence from the text.
2. Replace the most critical medical term (e.g., drug name, diagnosis, statistic) with '_______'.
3. Do NOT reveal the missing term.`,

	OpenEnded: `Create a short, difficult Open-Ended question.
1. Ask for a diagnosis, a list of symptoms, or an explanation of a mechanism shown in the text.
2. If there is a table, ask about an item from the table. Provide the column and row headers regarding the question.
3. If there is a graph, ask to interpret the data.
4. If there are both a table and a graph, choose one about which you form the question.`,
}

// Question builds the prompt sent with the page image to draw a question.
func (b Builder) Question(chapter string, archetype Archetype) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are a %s.\n", b.role()))
	sb.WriteString(fmt.Sprintf("Topic: %s.\n", chapter))
	sb.WriteString(fmt.Sprintf("Language: %s. Make sure you translate the medical terms correctly, including inferring the correct medical practice terms.\n", b.language()))
	sb.WriteString("Based EXCLUSIVELY on the provided image:\n\n")

	instr, ok := archetypeInstructions[archetype]
	if !ok {
		instr = archetypeInstructions[OpenEnded]
	}
	sb.WriteString(instr)
	return sb.String()
}

// Grading builds the prompt that checks the learner's answer against the
// same page image. The checklist carries the archetype-specific checks.
func (b Builder) Grading(question, answer string, archetype Archetype) string {
	var sb strings.Builder
	sb.WriteString("You are grading a student's answer.\n\n")
	sb.WriteString(fmt.Sprintf("Question Type: %s\n", archetype))
	sb.WriteString(fmt.Sprintf("Question: %s\n", question))
	sb.WriteString(fmt.Sprintf("Student Answer: %s\n", answer))
	sb.WriteString(`
Task:
1. Verify the answer against the image provided.
`)
	switch archetype {
	case MultipleChoice:
		sb.WriteString("2. Check if they selected the correct option letter or text.\n")
	case FillInTheBlank:
		sb.WriteString("2. Check if they found the exact missing term.\n")
	default:
		sb.WriteString("2. Check whether the key points of the expected answer are covered.\n")
	}
	sb.WriteString("3. Provide the correct answer and a brief explanation.\n\n")
	sb.WriteString(fmt.Sprintf("Output Language: %s.\n", b.language()))
	sb.WriteString("Use bold text for the final verdict (Correct/Incorrect).")
	return sb.String()
}

// WithPageText appends the page's extracted text layer as supplementary
// context. Blank text leaves the prompt unchanged.
func WithPageText(prompt, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return prompt
	}
	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\n---\n")
	sb.WriteString("Extracted text of the same page (may be incomplete; the image is authoritative):\n")
	sb.WriteString(text)
	return sb.String()
}

func (b Builder) role() string {
	if strings.TrimSpace(b.Role) == "" {
		return DefaultBuilder().Role
	}
	return b.Role
}

func (b Builder) language() string {
	if strings.TrimSpace(b.Language) == "" {
		return DefaultBuilder().Language
	}
	return b.Language
}
