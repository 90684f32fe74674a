package scanning

import (
	"strings"
)

// noTextMarker is what the LLM scanners are told to answer for images without text
const noTextMarker = "NO_TEXT"

// transcribePrompt is the shared prompt used by all LLM providers for reading receipts
const transcribePrompt = `You are reading a photographed grocery receipt. Transcribe ALL printed text exactly as it appears.

Rules:
- Output one receipt line per output line, in the same order as on the receipt
- Keep item names, quantities, units and prices exactly as printed (e.g. "MILK 1 GAL 3.99")
- Include header and footer lines (store name, totals, dates); do not summarize or skip anything
- Do not translate, correct spelling, or add commentary
- Do not use markdown code blocks
- If the image contains no readable text, answer with exactly: ` + noTextMarker

// cleanTranscript strips markdown fences an LLM may wrap the transcript in and maps
// empty or NO_TEXT answers to ErrNoText
func cleanTranscript(text string) (string, error) {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		// Drop the opening fence line, including any language tag
		if i := strings.Index(text, "\n"); i >= 0 {
			text = text[i+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	if text == "" || strings.EqualFold(text, noTextMarker) {
		return "", ErrNoText
	}

	// Normalize line endings so downstream line numbers match what the user saw
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return text, nil
}
