// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import "strings"

// StripCodeFence removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[\"") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractJSON strips code fences, cuts any prose around the outermost JSON object
// or array and quotes bare object keys.
func ExtractJSON(s string) string {
	s = StripCodeFence(s)
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return quoteKeys(s[start:])
	}
	return quoteKeys(s[start : end+1])
}

// quoteKeys quotes object keys an oracle left bare or half quoted, as in
// {queries: [...]} or {queries": [...]}. Text inside strings is copied as is.
func quoteKeys(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		b.WriteByte(ch)
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', ',':
			keyStart := skipSpace(s, i+1)
			keyEnd := keyStart
			for keyEnd < len(s) && isKeyByte(s[keyEnd]) {
				keyEnd++
			}
			if keyEnd == keyStart {
				continue
			}
			next := keyEnd
			if next < len(s) && s[next] == '"' {
				next++
			}
			if colon := skipSpace(s, next); colon < len(s) && s[colon] == ':' {
				b.WriteString(s[i+1 : keyStart])
				b.WriteString(`"` + s[keyStart:keyEnd] + `"`)
				i = next - 1
			}
		}
	}
	return b.String()
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func isKeyByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
