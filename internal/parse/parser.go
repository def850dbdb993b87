package parse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultSpecialists is the specialist set recognized when none is injected.
var DefaultSpecialists = []string{"scraping", "visualization", "analysis", "ml", "cleaning"}

// DelegationMarker introduces a delegation directive in model output.
const DelegationMarker = "call_llm:"

// FinalAnswerMarker introduces an explicit final answer in model output.
const FinalAnswerMarker = "final answer:"

// Parser resolves raw model text to one Action.
//
// Recognition policy, in priority order (first match wins):
//
//  1. A whole-response JSON object of the form {"final answer": ...} or
//     {"code": ..., "analysis": ...}, optionally wrapped in a ```json fence.
//  2. A delegation directive: call_llm: {"model": "<specialist>", "prompt": "..."}.
//  3. A fenced code block; only the first block is taken, additional blocks
//     are deliberately ignored rather than merged.
//  4. An explicit "Final Answer:" marker, or, when neither a code block nor
//     a delegation directive was found, the entire text as a final answer.
//
// Anything structurally broken (empty response, fence without a closer,
// malformed delegation payload, unknown specialist) is an *Error, never a
// panic.
type Parser struct {
	specialists map[string]struct{}
}

// New creates a parser recognizing the given specialist names. An empty
// list falls back to DefaultSpecialists.
func New(specialists []string) *Parser {
	if len(specialists) == 0 {
		specialists = DefaultSpecialists
	}
	set := make(map[string]struct{}, len(specialists))
	for _, name := range specialists {
		set[strings.ToLower(name)] = struct{}{}
	}
	return &Parser{specialists: set}
}

// Parse resolves raw model text to exactly one Action.
func (p *Parser) Parse(raw string) (Action, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, &Error{Reason: "empty response"}
	}

	if action, ok := p.parseJSONObject(text); ok {
		return action, nil
	}

	if idx := strings.Index(text, DelegationMarker); idx != -1 {
		return p.parseDelegation(text[idx+len(DelegationMarker):])
	}

	if hasFence(text) {
		return parseCodeBlock(text)
	}

	return FinalAnswerAction{Text: stripFinalAnswerMarker(text)}, nil
}

// parseJSONObject handles the whole-response JSON forms. The bool result is
// false when the text is not a JSON object carrying a recognized key, in
// which case the marker grammar takes over.
func (p *Parser) parseJSONObject(text string) (Action, bool) {
	stripped := stripFence(text)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripped), &obj); err != nil {
		return nil, false
	}

	if rawAnswer, ok := obj["final answer"]; ok {
		return FinalAnswerAction{Text: rawToString(rawAnswer)}, true
	}

	if rawCode, ok := obj["code"]; ok {
		code := joinCode(rawCode)
		if strings.TrimSpace(code) == "" {
			return nil, false
		}
		analysis := ""
		if rawAnalysis, ok := obj["analysis"]; ok {
			analysis = rawToString(rawAnalysis)
		}
		return CodeAction{Code: code, Analysis: analysis}, true
	}

	return nil, false
}

// parseDelegation parses the payload after a call_llm: marker.
func (p *Parser) parseDelegation(rest string) (Action, error) {
	payload := extractJSONObject(rest)
	if payload == "" {
		return nil, &Error{Reason: "delegation directive without a JSON payload"}
	}

	var directive struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal([]byte(payload), &directive); err != nil {
		return nil, &Error{Reason: fmt.Sprintf("malformed delegation payload: %v", err)}
	}

	specialist := strings.ToLower(strings.TrimSpace(directive.Model))
	if specialist == "" {
		return nil, &Error{Reason: "delegation directive missing a specialist name"}
	}
	if _, ok := p.specialists[specialist]; !ok {
		return nil, &Error{Reason: fmt.Sprintf("unknown specialist %q", directive.Model)}
	}
	if strings.TrimSpace(directive.Prompt) == "" {
		return nil, &Error{Reason: "delegation directive missing a prompt"}
	}

	return DelegationAction{Specialist: specialist, Instruction: directive.Prompt}, nil
}

// parseCodeBlock extracts the first fenced block.
func parseCodeBlock(text string) (Action, error) {
	start := strings.Index(text, "```")
	// Skip the language tag line (```python, ```json, or bare ```).
	nl := strings.IndexByte(text[start:], '\n')
	if nl == -1 {
		return nil, &Error{Reason: "code fence without a closing marker"}
	}
	bodyStart := start + nl + 1

	end := strings.Index(text[bodyStart:], "```")
	if end == -1 {
		return nil, &Error{Reason: "code fence without a closing marker"}
	}

	code := strings.TrimSpace(text[bodyStart : bodyStart+end])
	if code == "" {
		return nil, &Error{Reason: "empty code block"}
	}
	return CodeAction{Code: code}, nil
}

// stripFinalAnswerMarker removes a leading "Final Answer:" marker, matched
// case-insensitively, leaving the answer text itself.
func stripFinalAnswerMarker(text string) string {
	lower := strings.ToLower(text)
	if idx := strings.Index(lower, FinalAnswerMarker); idx != -1 {
		return strings.TrimSpace(text[idx+len(FinalAnswerMarker):])
	}
	return text
}

func hasFence(text string) bool {
	return strings.Contains(text, "```")
}

// stripFence removes a markdown fence wrapping the whole text (``` or
// ```json), when present.
func stripFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	if nl := strings.IndexByte(t, '\n'); nl != -1 {
		t = t[nl+1:]
	} else {
		t = strings.TrimPrefix(t, "```")
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

// extractJSONObject returns the first balanced {...} object in s, or "".
// Braces inside JSON strings are accounted for.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// rawToString renders a JSON value as answer text: strings verbatim,
// everything else in compact JSON form.
func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// joinCode normalizes the "code" value: a string is taken as-is, a list of
// strings is joined with blank lines.
func joinCode(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "\n\n")
	}
	return ""
}
