package backend

import (
	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/Egham-7/repurpose-api/internal/utils"
)

const systemPrompt = "You are an expert content creator and social media strategist. Create engaging, platform-optimized content."

// instructions holds the per-format prompt; the transcript is appended after a blank line.
var instructions = map[models.OutputType]string{
	models.OutputTikTokScript:     "Create an engaging TikTok script (30-60 seconds) based on this content. Include hook, main points, and call-to-action. Format with [HOOK], [MAIN], [CTA] sections:",
	models.OutputTwitterThread:    "Create a viral Twitter/X thread (5-7 tweets) based on this content. Start with a hook, include value bombs, and end with engagement. Number each tweet:",
	models.OutputLinkedInPost:     "Create a professional LinkedIn post based on this content. Include a hook, storytelling element, key insights, and call-to-action:",
	models.OutputInstagramCaption: "Create an engaging Instagram caption based on this content. Include emojis, line breaks for readability, and relevant hashtags at the end:",
	models.OutputHooks:            "Generate 10 attention-grabbing hooks/headlines based on this content. Make them curiosity-driven, benefit-focused, or controversy-invoking:",
	models.OutputHashtags:         "Generate 30 relevant hashtags for this content, organized by: 10 popular (high volume), 10 niche (medium volume), 10 specific (low competition):",
	models.OutputBlogOutline:      "Create a detailed blog post outline based on this content. Include title options, introduction, H2/H3 sections, key points, and conclusion:",
	models.OutputEmailNewsletter:  "Create an email newsletter based on this content. Include subject line options, preview text, greeting, main content sections, and CTA:",
}

// BuildPrompt renders the user prompt for outputType. Types outside the
// enumeration get a generic repurposing instruction.
func BuildPrompt(transcript string, outputType models.OutputType) string {
	if instruction, ok := instructions[outputType]; ok {
		return utils.Concat(instruction, "\n\n", transcript)
	}
	return utils.Concat("Repurpose this content: ", transcript)
}
