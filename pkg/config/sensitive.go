package config

import "encoding/json"

// SensitiveString holds secrets that must never appear in logs or serialized
// output. String and MarshalJSON redact the value; Value returns it.
type SensitiveString string

const redacted = "[REDACTED]"

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SensitiveString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = SensitiveString(v)
	return nil
}
