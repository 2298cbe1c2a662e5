package abacus

import "fmt"

const systemMessage = "You are an AI assistant that extracts step-by-step instructions from video transcripts. " +
	"Format the output as a clean markdown document with a title, brief overview, numbered step-by-step instructions " +
	"with clear action items, and any important notes or tips mentioned. Make the instructions actionable and easy to follow. " +
	"Remove any filler words, tangents, or unnecessary content. Focus only on the core instructional content."

const promptTemplate = `I have a transcript from a YouTube video titled "%s". Please analyze this transcript and extract clear, step-by-step instructions that someone can follow to accomplish the task or learn what's being taught in the video.

Here's the transcript:

%s

Please provide ONLY the markdown document with no citations, references, or meta-commentary.`

// Prompt is the system instruction and user prompt sent for one transcript.
type Prompt struct {
	system string
	user   string
}

// NewPrompt expects an already sanitized title and transcript.
func NewPrompt(title, transcript string) Prompt {
	return Prompt{
		system: systemMessage,
		user:   fmt.Sprintf(promptTemplate, title, transcript),
	}
}

func (p Prompt) System() string { return p.system }

func (p Prompt) User() string { return p.user }
