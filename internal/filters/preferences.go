package filters

import (
	"encoding/json"
)

// ViewPreference is the period and time bucket remembered for a dashboard view.
type ViewPreference struct {
	Period     string `json:"period"`
	TimeBucket string `json:"timeBucket"`
}

func (p ViewPreference) Valid() bool {
	return IsPeriodValid(p.Period) && IsTimeBucketValid(p.TimeBucket)
}

// SanitizePreferences returns a new mapping holding only the entries whose
// period and time bucket are both recognised. The input is not modified.
func SanitizePreferences(raw map[string]ViewPreference) map[string]ViewPreference {
	out := make(map[string]ViewPreference, len(raw))
	for view, pref := range raw {
		if pref.Valid() {
			out[view] = pref
		}
	}
	return out
}

// DecodePreferences decodes a persisted preference blob. Entries that are
// not objects, or that fail validation, are dropped. A blob that is not a
// JSON object yields an empty mapping.
func DecodePreferences(data []byte) map[string]ViewPreference {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return map[string]ViewPreference{}
	}
	return DecodePreferenceEntries(entries)
}

// DecodePreferenceEntries decodes the JSON encoded preference of every
// view separately and keeps the valid ones.
func DecodePreferenceEntries[T ~[]byte | ~string](entries map[string]T) map[string]ViewPreference {
	raw := make(map[string]ViewPreference, len(entries))
	for view, entry := range entries {
		var pref ViewPreference
		if err := json.Unmarshal([]byte(entry), &pref); err != nil {
			continue
		}
		raw[view] = pref
	}

	return SanitizePreferences(raw)
}
