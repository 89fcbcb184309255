package service

const (
	fallbackDescription = "Unable to generate description"

	promptTemplate = `Please describe this image in detail for someone with visual impairment. Focus on:
1. Main subject and important objects
2. Colors, lighting, and atmosphere
3. Spatial relationships and composition
4. Any text visible in the image
5. Activities or actions taking place
6. Facial expressions and emotions if people are present

Keep the description clear, objective, and helpful for accessibility. Limit to approximately %d words.`
)

const (
	msgConfiguration      = "API configuration error. Please set %s environment variable."
	msgNoImage            = "No image data provided"
	msgInvalidBody        = "Invalid request body"
	msgBodyTooLarge       = "Image too large. Please use a smaller image."
	msgUpstreamAuth       = "Invalid API key. Please check your %s API key configuration."
	msgUpstreamRateLimit  = "Rate limit exceeded. Please try again later."
	msgUpstreamBadRequest = "Invalid request. Please check the image format and size."
	msgUpstreamUnknown    = "Failed to process image description"
)

var providerDisplayNames = map[string]string{
	"anthropic": "Anthropic",
	"openai":    "OpenAI",
	"ollama":    "Ollama",
}
