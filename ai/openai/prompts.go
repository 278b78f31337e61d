package openai

import "strings"

const systemPrompt = `You assist a research retrieval engine. Follow the instructions in the user
message exactly and answer in the format they request. Do not include any preamble, explanation,
greeting, or acknowledgment. Never invent papers, authors or results.`

// scrubString removes control characters that some OpenAI-compatible servers reject.
func scrubString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
