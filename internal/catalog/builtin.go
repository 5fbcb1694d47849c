package catalog

// ModelSpec names a model the UI can offer before any live listing has
// been fetched.
type ModelSpec struct {
	ID          string
	DisplayName string
}

var builtinSpecs = []ModelSpec{
	{ID: "amazon/nova-2-lite-v1:free", DisplayName: "Amazon Nova 2 Lite (Free)"},
	{ID: "amazon/nova-2", DisplayName: "Amazon Nova 2"},
	{ID: "anthropic/claude-3.5-sonnet", DisplayName: "Claude 3.5 Sonnet"},
	{ID: "anthropic/claude-3-haiku", DisplayName: "Claude 3 Haiku"},
	{ID: "anthropic/claude-3-sonnet", DisplayName: "Claude 3 Sonnet"},
	{ID: "anthropic/claude-3-opus", DisplayName: "Claude 3 Opus"},
	{ID: "openai/gpt-3.5-turbo", DisplayName: "GPT-3.5 Turbo"},
	{ID: "openai/gpt-4", DisplayName: "GPT-4"},
	{ID: "openai/gpt-4-turbo", DisplayName: "GPT-4 Turbo"},
	{ID: "google/gemini-pro", DisplayName: "Gemini Pro"},
	{ID: "google/gemini-flash", DisplayName: "Gemini Flash"},
	{ID: "google/gemini-ultra", DisplayName: "Gemini Ultra"},
	{ID: "meta-llama/llama-3-8b", DisplayName: "Llama 3 8B"},
	{ID: "meta-llama/llama-3-70b", DisplayName: "Llama 3 70B"},
	{ID: "meta-llama/llama-3.1-8b", DisplayName: "Llama 3.1 8B"},
	{ID: "meta-llama/llama-3.1-70b", DisplayName: "Llama 3.1 70B"},
	{ID: "mistralai/mistral-small", DisplayName: "Mistral Small"},
	{ID: "mistralai/mistral-large", DisplayName: "Mistral Large"},
	{ID: "cohere/command-r", DisplayName: "Command R"},
	{ID: "cohere/command-r-plus", DisplayName: "Command R+"},
}

func BuiltinModels() []ModelSpec {
	copyOf := make([]ModelSpec, len(builtinSpecs))
	copy(copyOf, builtinSpecs)
	return copyOf
}

// DisplayName resolves a model id to its human label, falling back to
// the raw id for models the builtin table does not know.
func DisplayName(id string) string {
	for _, spec := range builtinSpecs {
		if spec.ID == id {
			return spec.DisplayName
		}
	}
	return id
}

// ensureDefault guarantees the default model is always offered, at the
// front of the list.
func ensureDefault(models []string) []string {
	for _, id := range models {
		if id == DefaultModel {
			return models
		}
	}
	return append([]string{DefaultModel}, models...)
}
