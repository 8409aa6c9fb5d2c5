package model

func ptr[T any](v T) *T { return &v }

// Records lists every model the gateway knows how to front. The config file
// references entries by ResolveName and supplies the endpoint they run on.
var Records = []Record{
	// https://huggingface.co/unsloth/gpt-oss-20b-GGUF
	{
		ResolveName: "gpt-oss-20b",
		Model:       "unsloth/gpt-oss-20b-GGUF",
		Kind:        KindLLM,
		ContextSize: 64_000,
		Sampling: SamplingDefaults{
			MaxTokens: ptr(8096),
		},
		ChatPath:   "/v1/chat/completions",
		HealthPath: "/health",
	},
	{
		ResolveName: "qwen3-4b",
		Model:       "Qwen/Qwen3-4B-Instruct-2507",
		Kind:        KindLLM,
		ContextSize: 32_000,
		Sampling: SamplingDefaults{
			Temperature: ptr(0.7),
			TopP:        ptr(0.8),
			MaxTokens:   ptr(8096),
		},
		ChatPath:   "/v1/chat/completions",
		HealthPath: "/health",
	},
	{
		ResolveName: "kokoro",
		Model:       "hexgrad/Kokoro-82M",
		Kind:        KindTTS,
		ContextSize: 2000,
		Audio:       AudioConstants{SampleRate: 24_000, Channels: 1},
		Voice:       "af_heart",
		Speed:       1.0,
	},
	{
		ResolveName: "parakeet",
		Model:       "nvidia/parakeet-tdt-0.6b-v2",
		Kind:        KindSTT,
		Audio:       AudioConstants{SampleRate: 16_000, Channels: 1},
	},
}

// RecordByName returns the built-in record with the given resolve name.
func RecordByName(name string) (Record, bool) {
	for _, r := range Records {
		if r.ResolveName == name {
			return r, true
		}
	}
	return Record{}, false
}
