package oai

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// SpeechStylePrompt is the guidance block appended to the system message of
// chat completion requests that ask for the audio modality. It steers the LLM
// towards output a TTS engine can speak cleanly.
const SpeechStylePrompt = "Your responses are converted to speech by a text-to-speech engine. " +
	"Answer in plain spoken English: no markdown, no bullet points, no code blocks, no emoji. " +
	"Spell out symbols, units and abbreviations the way a narrator would say them. " +
	"Use commas and periods to create natural pauses."

// CountTokens estimates the token count of s as len(s)/4. The estimate is
// deliberately cheap; it only needs to be stable and monotone for history
// trimming.
func CountTokens(s string) int {
	return len(s) / 4
}

// LimitMessages trims messages so their estimated token total fits within
// 0.95 × contextSize. System messages are always retained; other messages are
// kept newest-first until the budget is exhausted. The returned slice
// preserves the original order. Applying LimitMessages twice yields the same
// result.
func LimitMessages(messages []ChatMessage, contextSize int) []ChatMessage {
	limit := int(float64(contextSize) * 0.95)

	keep := make([]bool, len(messages))
	used := 0
	for i, m := range messages {
		if m.Role == "system" {
			keep[i] = true
			used += CountTokens(m.Content)
		}
	}

	for i := len(messages) - 1; i >= 0; i-- {
		if keep[i] {
			continue
		}
		t := CountTokens(messages[i].Content)
		if used+t > limit {
			break
		}
		used += t
		keep[i] = true
	}

	out := make([]ChatMessage, 0, len(messages))
	for i, m := range messages {
		if keep[i] {
			out = append(out, m)
		}
	}
	return out
}

// ValidateMessages rejects histories carrying more than one system message.
func ValidateMessages(messages []ChatMessage) error {
	systems := 0
	for _, m := range messages {
		if m.Role == "system" {
			systems++
		}
	}
	if systems > 1 {
		return fmt.Errorf("oai: only one system message is allowed, got %d", systems)
	}
	return nil
}

// InjectSpeechPrompt ensures the history carries exactly one system message
// ending with [SpeechStylePrompt]. An existing system message gets the block
// appended (unless it is already present); otherwise a new system message is
// prepended, built from defaultPrompt (may be empty) plus the block.
func InjectSpeechPrompt(messages []ChatMessage, defaultPrompt string) []ChatMessage {
	for i, m := range messages {
		if m.Role != "system" {
			continue
		}
		if strings.Contains(m.Content, SpeechStylePrompt) {
			return messages
		}
		out := make([]ChatMessage, len(messages))
		copy(out, messages)
		out[i].Content = strings.TrimRight(m.Content, " \n") + "\n\n" + SpeechStylePrompt
		return out
	}

	content := SpeechStylePrompt
	if defaultPrompt != "" {
		content = strings.TrimRight(defaultPrompt, " \n") + "\n\n" + SpeechStylePrompt
	}
	out := make([]ChatMessage, 0, len(messages)+1)
	out = append(out, ChatMessage{Role: "system", Content: content})
	return append(out, messages...)
}

// NewMessageID returns a fresh chat completion response id of the form
// msg_<24 hex chars>.
func NewMessageID() string {
	return "msg_" + randomHex(12)
}

// NewAudioID returns a fresh audio stream id of the form audio_<24 hex chars>.
func NewAudioID() string {
	return "audio_" + randomHex(12)
}

func randomHex(n int) string {
	b := make([]byte, n)
	// crypto/rand.Read never fails on supported platforms.
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
