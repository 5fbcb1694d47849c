package answer

import (
	"fmt"
	"strings"
)

// PromptSettings are the user preferences that shape prompt construction.
type PromptSettings struct {
	CustomPrompt string
	Language     string
	AnswerStyle  string
}

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
}

var styleDirectives = map[string]string{
	"detailed":  "FORMAT: Use extremely detailed explanations, multiple comprehensive examples, and thorough coverage of all aspects. Include step-by-step breakdowns.",
	"technical": "FORMAT: Use technical language, precise terminology, detailed specifications, relevant formulas, and comprehensive technical explanations.",
	"concise":   "FORMAT: Be comprehensive but structured. Use clear sections, bullet points, and focused explanations. Include all essential details in an organized manner.",
	"casual":    "FORMAT: Use a conversational tone while maintaining detail and accuracy. Include relatable examples and clear explanations in an engaging style.",
}

// BuildPrompt renders the instruction sent to the provider. The output is
// deterministic for identical inputs and embeds the question text exactly
// once.
func BuildPrompt(text string, settings PromptSettings) string {
	var b strings.Builder

	custom := strings.TrimSpace(settings.CustomPrompt)
	if custom != "" {
		b.WriteString(custom)
		b.WriteString("\n\n")
		b.WriteString(text)
	} else {
		b.WriteString("You are an expert assistant answering a question selected from a webpage.\n")
		b.WriteString("Answer the following question with a thorough, informative, and educational response.\n\n")
		b.WriteString("REQUIREMENTS:\n")
		b.WriteString("- Provide detailed and comprehensive explanations\n")
		b.WriteString("- Include relevant examples and practical applications\n")
		b.WriteString("- Explain concepts step by step with clear reasoning\n")
		b.WriteString("- Do not provide one-sentence or overly simple answers\n")
		b.WriteString("- Do not add introductions or conclusions; go straight to the answer\n\n")
		b.WriteString("QUESTION:\n")
		fmt.Fprintf(&b, "%q\n\n", text)
		b.WriteString("ANSWER:")
	}

	if settings.Language != "" && settings.Language != "auto" {
		if name, ok := languageNames[settings.Language]; ok {
			fmt.Fprintf(&b, "\n\nIMPORTANT: Respond in %s and make sure all examples and explanations are accurately translated.", name)
		}
	}

	if directive, ok := styleDirectives[settings.AnswerStyle]; ok {
		b.WriteString("\n\n")
		b.WriteString(directive)
	}

	return b.String()
}

const detailedSystemPrompt = "You are an expert AI assistant providing detailed, comprehensive answers. " +
	"Your responses should be thorough, informative, and educational. " +
	"Include examples, explanations, and relevant details. " +
	"Never provide one-sentence or overly simple answers."

const escalatedSystemPrompt = "You are an expert AI assistant providing extremely detailed, comprehensive answers. " +
	"Your responses must be thorough, informative, and educational. " +
	"Include multiple examples, detailed explanations, and extensive relevant details. " +
	"NEVER provide one-sentence or overly simple answers. Always provide comprehensive responses."

func escalatedPrompt(prompt string, minWords int) string {
	return fmt.Sprintf(
		"%s\n\nIMPORTANT: Provide a MUCH more detailed and comprehensive response. Include multiple examples, thorough explanations, and extensive details. Minimum %d words required.",
		prompt, minWords,
	)
}
