package upstream

import (
	"encoding/json"
	"strings"
)

// The completion API has shipped several response shapes over time. Rather
// than binding to one, extraction runs an ordered list of pure probes over
// the decoded body; the first non-blank match wins, and a total miss is an
// empty string (which the caller treats as a retryable empty response, not
// a failure).

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
	Text       string      `json:"text"`
}

type candidate struct {
	// Content has been observed both as a plain string and as an object
	// holding a parts array, so it stays raw until probed.
	Content      json.RawMessage   `json:"content"`
	Output       string            `json:"output"`
	Message      *candidateMessage `json:"message"`
	FinishReason string            `json:"finishReason"`
}

type candidateMessage struct {
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Text string `json:"text"`
}

type contentParts struct {
	Parts []contentPart `json:"parts"`
}

type extractor func(*generateResponse) string

var extractors = []extractor{
	extractCandidateContentString,
	extractCandidateOutput,
	extractMessageContent,
	extractContentParts,
	extractTopLevelText,
}

// extractText returns the first non-blank text any probe finds, or "".
func extractText(resp *generateResponse) string {
	if resp == nil {
		return ""
	}
	for _, probe := range extractors {
		if text := probe(resp); strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}

// finishReason returns the first candidate's finish reason, if any.
func finishReason(resp *generateResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	return resp.Candidates[0].FinishReason
}

func firstCandidate(resp *generateResponse) *candidate {
	if len(resp.Candidates) == 0 {
		return nil
	}
	return &resp.Candidates[0]
}

func extractCandidateContentString(resp *generateResponse) string {
	cand := firstCandidate(resp)
	if cand == nil || len(cand.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(cand.Content, &s); err != nil {
		return ""
	}
	return s
}

func extractCandidateOutput(resp *generateResponse) string {
	if cand := firstCandidate(resp); cand != nil {
		return cand.Output
	}
	return ""
}

func extractMessageContent(resp *generateResponse) string {
	cand := firstCandidate(resp)
	if cand == nil || cand.Message == nil {
		return ""
	}
	for _, item := range cand.Message.Content {
		if strings.TrimSpace(item.Text) != "" {
			return item.Text
		}
	}
	return ""
}

func extractContentParts(resp *generateResponse) string {
	cand := firstCandidate(resp)
	if cand == nil || len(cand.Content) == 0 {
		return ""
	}
	var parts contentParts
	if err := json.Unmarshal(cand.Content, &parts); err != nil {
		return ""
	}
	for _, p := range parts.Parts {
		if strings.TrimSpace(p.Text) != "" {
			return p.Text
		}
	}
	return ""
}

func extractTopLevelText(resp *generateResponse) string {
	return resp.Text
}
