package models

import (
	"fmt"
	"strings"
)

// OutputType is one of the content formats a generation can produce.
type OutputType string

const (
	OutputTikTokScript     OutputType = "tiktok_script"
	OutputTwitterThread    OutputType = "twitter_thread"
	OutputLinkedInPost     OutputType = "linkedin_post"
	OutputInstagramCaption OutputType = "instagram_caption"
	OutputHooks            OutputType = "hooks"
	OutputHashtags         OutputType = "hashtags"
	OutputBlogOutline      OutputType = "blog_outline"
	OutputEmailNewsletter  OutputType = "email_newsletter"
)

var outputTypes = []OutputType{
	OutputTikTokScript,
	OutputTwitterThread,
	OutputLinkedInPost,
	OutputInstagramCaption,
	OutputHooks,
	OutputHashtags,
	OutputBlogOutline,
	OutputEmailNewsletter,
}

// AllOutputTypes returns every known output type in display order.
func AllOutputTypes() []OutputType {
	out := make([]OutputType, len(outputTypes))
	copy(out, outputTypes)
	return out
}

// Known reports whether t is part of the enumeration.
func (t OutputType) Known() bool {
	for _, known := range outputTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t OutputType) String() string {
	return string(t)
}

// ParseOutputType normalizes a raw name and rejects anything outside the enumeration.
func ParseOutputType(raw string) (OutputType, error) {
	t := OutputType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Known() {
		return "", fmt.Errorf("unknown output type: %s", raw)
	}
	return t, nil
}

// ParseOutputTypes parses a request list, collapsing duplicates while keeping first-seen order.
func ParseOutputTypes(raw []string) ([]OutputType, error) {
	seen := make(map[OutputType]bool, len(raw))
	parsed := make([]OutputType, 0, len(raw))
	for _, r := range raw {
		t, err := ParseOutputType(r)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		parsed = append(parsed, t)
	}
	return parsed, nil
}

// SourceType identifies where a generation's content came from.
type SourceType string

const (
	SourceYouTube SourceType = "youtube"
	SourcePodcast SourceType = "podcast"
	SourceText    SourceType = "text"
)

// ParseSourceType defaults an empty value to text.
func ParseSourceType(raw string) (SourceType, error) {
	switch s := SourceType(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return SourceText, nil
	case SourceYouTube, SourcePodcast, SourceText:
		return s, nil
	default:
		return "", fmt.Errorf("unknown source type: %s", raw)
	}
}
