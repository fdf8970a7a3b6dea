// Package prompt renders generation requests into backend instruction text.
// All HTTP providers share it; only the transport differs between them.
package prompt

import (
	"fmt"
	"strings"

	"github.com/vipplay/articleforge/pkg/models"
)

// System is the system prompt shared by the chat-style providers.
const System = "You are a professional content writer. You produce well-structured, engaging, factually careful articles in Markdown."

// Build renders one request into the user-facing instruction text.
func Build(req models.GenerationRequest) string {
	var b strings.Builder

	switch req.Mode {
	case models.ModeKeywords:
		fmt.Fprintf(&b, "Write an article built around these keywords: %s.\n",
			strings.Join(req.Keywords, ", "))
		if req.KeywordDensity != "" {
			fmt.Fprintf(&b, "Keyword density: %s.\n", req.KeywordDensity)
		}
	case models.ModeTrends:
		topic := req.Topic
		if req.Trend != nil && req.Trend.Topic != "" {
			topic = req.Trend.Topic
		}
		fmt.Fprintf(&b, "Write a timely article about the trending topic %q.\n", topic)
		if req.Trend != nil && req.Trend.Description != "" {
			fmt.Fprintf(&b, "Context: %s\n", req.Trend.Description)
		}
		if req.Trend != nil && req.Trend.Region != "" {
			fmt.Fprintf(&b, "Focus on its relevance in %s.\n", req.Trend.Region)
		}
	case models.ModeSpin:
		b.WriteString("Rewrite the following article from a fresh angle.\n")
		if req.SpinAngle != "" {
			fmt.Fprintf(&b, "New angle: %s.\n", req.SpinAngle)
		}
		if req.SpinIntensity != "" {
			fmt.Fprintf(&b, "Rewrite intensity: %s.\n", req.SpinIntensity)
		}
		fmt.Fprintf(&b, "\nSource article:\n%s\n\n", req.SpinSource)
	default:
		fmt.Fprintf(&b, "Write an article about %q.\n", req.Topic)
	}

	wordCount := req.WordCount
	if wordCount <= 0 {
		wordCount = models.DefaultWordCount
	}
	fmt.Fprintf(&b, "Length: approximately %d words.\n", wordCount)

	if req.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s.\n", req.Tone)
	}
	if req.ContentStructure != "" {
		fmt.Fprintf(&b, "Structure: %s.\n", req.ContentStructure)
	}
	if req.SEOOptimization {
		b.WriteString("Optimize the article for search engines: use descriptive headings and a compelling introduction.\n")
	}
	b.WriteString("Return only the article text, formatted in Markdown.")

	return b.String()
}
