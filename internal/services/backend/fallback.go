package backend

import (
	"context"

	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/Egham-7/repurpose-api/internal/utils"
)

const (
	excerptPlaceholder = "{{excerpt}}"
	excerptRunes       = 100
)

var templates = map[models.OutputType]string{
	models.OutputTikTokScript: "[HOOK]\n" +
		"Stop scrolling! Here's something that'll change how you think about this...\n" +
		"\n" +
		"[MAIN]\n" +
		"Based on: \"{{excerpt}}...\"\n" +
		"\n" +
		"Key insight #1: This changes everything\n" +
		"Key insight #2: Most people don't know this\n" +
		"Key insight #3: Here's the game-changer\n" +
		"\n" +
		"[CTA]\n" +
		"Follow for more insights like this! Drop a comment if this resonated with you.",
	models.OutputTwitterThread: "1/ Thread: Here's what nobody tells you about this topic\n" +
		"\n" +
		"Based on: \"{{excerpt}}...\"\n" +
		"\n" +
		"2/ First, let's break down the key insight...\n" +
		"\n" +
		"This alone can transform your approach.\n" +
		"\n" +
		"3/ Second, most people miss this crucial point...\n" +
		"\n" +
		"But top performers know it well.\n" +
		"\n" +
		"4/ Third, here's the actionable takeaway...\n" +
		"\n" +
		"Implement this today.\n" +
		"\n" +
		"5/ To summarize:\n" +
		"• Key point 1\n" +
		"• Key point 2\n" +
		"• Key point 3\n" +
		"\n" +
		"Like + RT if this was valuable! Follow for more.",
	models.OutputLinkedInPost: "I used to think I knew everything about this topic.\n" +
		"\n" +
		"Then I discovered something that changed my perspective entirely.\n" +
		"\n" +
		"Based on: \"{{excerpt}}...\"\n" +
		"\n" +
		"Here's what I learned:\n" +
		"\n" +
		"→ Insight 1: The fundamentals matter more than tactics\n" +
		"→ Insight 2: Consistency beats perfection\n" +
		"→ Insight 3: Community amplifies impact\n" +
		"\n" +
		"The biggest takeaway?\n" +
		"\n" +
		"Success isn't about working harder—it's about working smarter.\n" +
		"\n" +
		"What's your experience with this? Share in the comments 👇\n" +
		"\n" +
		"#ContentCreation #SocialMedia #Growth #Marketing",
	models.OutputInstagramCaption: "✨ This changed everything for me ✨\n" +
		"\n" +
		"Based on: \"{{excerpt}}...\"\n" +
		"\n" +
		"Here's the breakdown:\n" +
		"\n" +
		"📌 Key insight that shifts perspective\n" +
		"📌 Actionable step you can take today  \n" +
		"📌 Result you can expect\n" +
		"\n" +
		"Save this for later! 🔖\n" +
		"\n" +
		"Double tap if this resonates ❤️\n" +
		"\n" +
		".\n" +
		".\n" +
		".\n" +
		"#contentcreator #socialmediatips #growthmindset #creatoreconomy #digitalmarketing #contentmarketing #instagramtips #tiktokmarketing #creatortips #socialmediamarketing",
	models.OutputHooks: "🎯 10 Attention-Grabbing Hooks:\n" +
		"\n" +
		"1. \"Nobody talks about this, but...\"\n" +
		"2. \"I was today years old when I learned...\"\n" +
		"3. \"Stop doing [X] if you want [result]\"\n" +
		"4. \"The #1 mistake killing your [goal]\"\n" +
		"5. \"Here's what $10M creators know that you don't\"\n" +
		"6. \"Unpopular opinion: [controversial take]\"\n" +
		"7. \"POV: You finally figured out [topic]\"\n" +
		"8. \"This hack saved me 10+ hours per week\"\n" +
		"9. \"Why 99% of people fail at [topic]\"\n" +
		"10. \"The truth about [topic] that experts hide\"",
	models.OutputHashtags: "📊 30 Strategic Hashtags:\n" +
		"\n" +
		"🔥 POPULAR (High Volume):\n" +
		"#content #creator #socialmedia #marketing #business #entrepreneur #growth #success #motivation #viral\n" +
		"\n" +
		"🎯 NICHE (Medium Volume):\n" +
		"#contentcreator #contentmarketing #creatortips #socialmediastrategy #digitalcreator #contentcreation #growthhacking #marketingtips #businesstips #onlinebusiness\n" +
		"\n" +
		"💎 SPECIFIC (Low Competition):\n" +
		"#contentrepurposing #creatortoolkit #socialmediahacks #contentworkflow #creatoreconomy #contentautomation #repurposecontent #contentscaling #creatorgrowth #contentstrategy",
	models.OutputBlogOutline: "📝 Blog Post Outline\n" +
		"\n" +
		"**Title Options:**\n" +
		"1. \"The Complete Guide to [Topic]: Everything You Need to Know\"\n" +
		"2. \"How to [Achieve Result]: A Step-by-Step Framework\"\n" +
		"3. \"[Number] Proven Strategies for [Desired Outcome]\"\n" +
		"\n" +
		"**Introduction:**\n" +
		"- Hook: Start with surprising statistic or question\n" +
		"- Problem: What readers are struggling with\n" +
		"- Promise: What they'll learn\n" +
		"\n" +
		"**H2: Understanding the Fundamentals**\n" +
		"- H3: Key concept 1\n" +
		"- H3: Key concept 2\n" +
		"- H3: Common misconceptions\n" +
		"\n" +
		"**H2: Step-by-Step Process**\n" +
		"- H3: Step 1 - Foundation\n" +
		"- H3: Step 2 - Implementation  \n" +
		"- H3: Step 3 - Optimization\n" +
		"\n" +
		"**H2: Advanced Strategies**\n" +
		"- H3: Pro tip 1\n" +
		"- H3: Pro tip 2\n" +
		"\n" +
		"**Conclusion:**\n" +
		"- Recap key points\n" +
		"- Call-to-action\n" +
		"- Next steps",
	models.OutputEmailNewsletter: "📧 Email Newsletter\n" +
		"\n" +
		"**Subject Line Options:**\n" +
		"1. \"This changed everything for me (and it will for you too)\"\n" +
		"2. \"[First Name], here's what you've been missing\"\n" +
		"3. \"The one thing top creators do differently\"\n" +
		"\n" +
		"**Preview Text:** \"Plus: exclusive insights you won't find anywhere else\"\n" +
		"\n" +
		"---\n" +
		"\n" +
		"Hey [First Name],\n" +
		"\n" +
		"Quick question: Have you ever felt like you're creating content into the void?\n" +
		"\n" +
		"I used to feel the same way. Until I discovered this...\n" +
		"\n" +
		"Based on: \"{{excerpt}}...\"\n" +
		"\n" +
		"**Here's the breakdown:**\n" +
		"\n" +
		"✅ Key insight #1\n" +
		"✅ Key insight #2  \n" +
		"✅ Key insight #3\n" +
		"\n" +
		"**Your action step for this week:**\n" +
		"Try implementing just ONE of these strategies and reply to tell me how it goes.\n" +
		"\n" +
		"Talk soon,\n" +
		"[Your Name]\n" +
		"\n" +
		"P.S. If you found this valuable, forward it to a creator friend who needs to see this!",
}

// FallbackBackend renders canned content offline. It never fails and never returns an empty string.
type FallbackBackend struct{}

func NewFallbackBackend() *FallbackBackend {
	return &FallbackBackend{}
}

func (b *FallbackBackend) Name() string {
	return "fallback"
}

func (b *FallbackBackend) Produce(_ context.Context, transcript string, outputType models.OutputType) (string, error) {
	return Render(transcript, outputType), nil
}

// Render fills the template for outputType with the first 100 characters of the transcript.
func Render(transcript string, outputType models.OutputType) string {
	tmpl, ok := templates[outputType]
	if !ok {
		return "Generated content for " + string(outputType) + " based on your input."
	}
	return utils.Fill(tmpl, excerptPlaceholder, excerpt(transcript))
}

func excerpt(transcript string) string {
	runes := []rune(transcript)
	if len(runes) <= excerptRunes {
		return transcript
	}
	return string(runes[:excerptRunes])
}
