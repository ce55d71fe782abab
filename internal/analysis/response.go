package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/FocuswithJustin/NarrativeCues/core/cues"
)

// Response is the JSON document an analyzer is expected to embed in its
// output.
type Response struct {
	Cues []AnalyzedCue `json:"cues" jsonschema:"description=Narrative cues found in the passage"`
}

// AnalyzedCue is one cue reported by the external analyzer.
type AnalyzedCue struct {
	Type        string     `json:"type" jsonschema:"enum=primacy,enum=causal,enum=focalization,enum=absence,enum=prolepsis"`
	Location    string     `json:"location" jsonschema:"description=Verse reference or quoted words"`
	Explanation string     `json:"explanation"`
	Confidence  Confidence `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}

// Category maps Type onto the closed cue categories.
func (c AnalyzedCue) Category() (cues.Category, bool) {
	cat, err := cues.ParseCategory(c.Type)
	return cat, err == nil
}

// Confidence is a score in [0,1]. It decodes from a JSON number or a quoted
// number and clamps out-of-range values.
type Confidence float64

// UnmarshalJSON implements json.Unmarshaler.
func (c *Confidence) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*c = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	s = strings.TrimSuffix(s, "%")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("confidence %s: %w", b, err)
	}
	if strings.Contains(string(b), "%") {
		f /= 100
	}
	switch {
	case f < 0:
		f = 0
	case f > 1:
		f = 1
	}
	*c = Confidence(f)
	return nil
}

// JSONSchema implements jsonschema's custom schema hook.
func (Confidence) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:    "number",
		Minimum: json.Number("0"),
		Maximum: json.Number("1"),
	}
}

// ExtractCues pulls the cues array out of an unstructured analyzer blob.
// The blob may be bare JSON or JSON wrapped in prose or code fences.
func ExtractCues(raw string) ([]AnalyzedCue, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, io.ErrUnexpectedEOF
	}

	var resp struct {
		Cues *[]AnalyzedCue `json:"cues"`
	}
	// Fast path: valid JSON as-is.
	if err := json.Unmarshal([]byte(s), &resp); err != nil {
		start := strings.IndexByte(s, '{')
		end := strings.LastIndexByte(s, '}')
		if start == -1 || end <= start {
			return nil, fmt.Errorf("no JSON object found in analyzer output (len=%d)", len(s))
		}
		sub := s[start : end+1]
		if err := json.Unmarshal([]byte(sub), &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extracted JSON (len=%d): %w", len(sub), err)
		}
	}
	if resp.Cues == nil {
		return nil, fmt.Errorf("analyzer output has no cues array")
	}
	return *resp.Cues, nil
}

// ResponseSchema returns the JSON schema of Response, sent to analyzers so
// they can shape their output.
func ResponseSchema() (json.RawMessage, error) {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := r.Reflect(&Response{})
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(schema); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimSpace(buf.Bytes())), nil
}
