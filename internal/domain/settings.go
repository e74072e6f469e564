package domain

import (
	"bytes"
	"encoding/json"
)

// Settings holds per-conversation sampling options. Keys the server does not
// interpret are kept in Extra and written back unchanged.
type Settings struct {
	Temperature  *float64
	MaxTokens    *int
	SystemPrompt string
	Extra        map[string]json.RawMessage
}

const (
	settingTemperature  = "temperature"
	settingMaxTokens    = "max_tokens"
	settingSystemPrompt = "system_prompt"
)

// ParseSettings decodes stored settings. Empty or malformed input yields empty
// settings rather than an error.
func ParseSettings(raw string) Settings {
	var s Settings
	if raw == "" {
		return s
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Settings{}
	}
	return s
}

// Encode returns the JSON text stored in the settings column.
func (s Settings) Encode() string {
	b, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (s Settings) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+3)
	for k, v := range s.Extra {
		out[k] = v
	}
	if s.Temperature != nil {
		out[settingTemperature] = *s.Temperature
	}
	if s.MaxTokens != nil {
		out[settingMaxTokens] = *s.MaxTokens
	}
	if s.SystemPrompt != "" {
		out[settingSystemPrompt] = s.SystemPrompt
	}
	return json.Marshal(out)
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Settings{}
	for k, v := range raw {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		switch k {
		case settingTemperature:
			var f float64
			if json.Unmarshal(v, &f) == nil {
				s.Temperature = &f
				continue
			}
		case settingMaxTokens:
			var n int
			if json.Unmarshal(v, &n) == nil {
				s.MaxTokens = &n
				continue
			}
		case settingSystemPrompt:
			var p string
			if json.Unmarshal(v, &p) == nil {
				s.SystemPrompt = p
				continue
			}
		}
		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage)
		}
		s.Extra[k] = v
	}
	return nil
}

// MaxTokensOr returns the configured max tokens, or def when unset or zero.
func (s Settings) MaxTokensOr(def int) int {
	if s.MaxTokens == nil || *s.MaxTokens <= 0 {
		return def
	}
	return *s.MaxTokens
}

// TemperatureOr returns the configured temperature, or def when unset or zero.
func (s Settings) TemperatureOr(def float64) float64 {
	if s.Temperature == nil || *s.Temperature == 0 {
		return def
	}
	return *s.Temperature
}
