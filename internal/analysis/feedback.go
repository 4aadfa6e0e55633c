package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	fieldOverallScore = "overallScore"
	fieldATS          = "ATS"
	fieldScore        = "score"
	fieldTips         = "tips"
)

// Feedback is the scored result. Only the overall score and the ATS section
// are interpreted; every other section is kept verbatim.
type Feedback struct {
	OverallScore float64
	ATS          ATS
	Sections     map[string]json.RawMessage
}

// ATS is the applicant-tracking-system section.
type ATS struct {
	Score float64
	Tips  []Tip
	Extra map[string]json.RawMessage
}

// Tip is one ATS suggestion. Scorers send either a bare string or an object
// with a "tip" field; the original encoding is preserved.
type Tip struct {
	Text string
	raw  json.RawMessage
}

// NewTip returns a plain string tip.
func NewTip(text string) Tip { return Tip{Text: text} }

func (t Tip) MarshalJSON() ([]byte, error) {
	if len(t.raw) > 0 {
		return t.raw, nil
	}
	return json.Marshal(t.Text)
}

func (t *Tip) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.New("empty tip")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Tip{Text: s}
		return nil
	case '{':
		var obj struct {
			Tip string `json:"tip"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		compact, err := compactJSON(trimmed)
		if err != nil {
			return err
		}
		*t = Tip{Text: obj.Tip, raw: compact}
		return nil
	default:
		return fmt.Errorf("tip must be a string or an object")
	}
}

func (f Feedback) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(f.Sections)+2)
	for k, v := range f.Sections {
		out[k] = v
	}
	score, err := json.Marshal(f.OverallScore)
	if err != nil {
		return nil, err
	}
	out[fieldOverallScore] = score
	ats, err := json.Marshal(f.ATS)
	if err != nil {
		return nil, err
	}
	out[fieldATS] = ats
	return json.Marshal(out)
}

func (f *Feedback) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("feedback must be an object")
	}

	scoreRaw, ok := raw[fieldOverallScore]
	if !ok {
		return errors.New("feedback is missing overallScore")
	}
	score, err := decodeScore(scoreRaw, fieldOverallScore)
	if err != nil {
		return err
	}

	atsRaw, ok := raw[fieldATS]
	if !ok {
		return errors.New("feedback is missing ATS")
	}
	var ats ATS
	if err := json.Unmarshal(atsRaw, &ats); err != nil {
		return fmt.Errorf("ATS: %w", err)
	}

	sections := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if k == fieldOverallScore || k == fieldATS {
			continue
		}
		compact, err := compactJSON(v)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		sections[k] = compact
	}

	*f = Feedback{OverallScore: score, ATS: ats, Sections: sections}
	return nil
}

func (a ATS) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(a.Extra)+2)
	for k, v := range a.Extra {
		out[k] = v
	}
	score, err := json.Marshal(a.Score)
	if err != nil {
		return nil, err
	}
	out[fieldScore] = score
	tips := a.Tips
	if tips == nil {
		tips = []Tip{}
	}
	encoded, err := json.Marshal(tips)
	if err != nil {
		return nil, err
	}
	out[fieldTips] = encoded
	return json.Marshal(out)
}

func (a *ATS) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("ATS must be an object")
	}
	scoreRaw, ok := raw[fieldScore]
	if !ok {
		return errors.New("ATS is missing score")
	}
	score, err := decodeScore(scoreRaw, "ATS.score")
	if err != nil {
		return err
	}

	tips := []Tip{}
	if tipsRaw, ok := raw[fieldTips]; ok && !isNull(tipsRaw) {
		if err := json.Unmarshal(tipsRaw, &tips); err != nil {
			return fmt.Errorf("tips: %w", err)
		}
	}

	extra := make(map[string]json.RawMessage)
	for k, v := range raw {
		if k == fieldScore || k == fieldTips {
			continue
		}
		compact, err := compactJSON(v)
		if err != nil {
			return err
		}
		extra[k] = compact
	}

	*a = ATS{Score: score, Tips: tips, Extra: extra}
	return nil
}

// TipTexts returns the textual form of every ATS tip in order.
func (a ATS) TipTexts() []string {
	out := make([]string, 0, len(a.Tips))
	for _, t := range a.Tips {
		out = append(out, t.Text)
	}
	return out
}

// ParseFeedback decodes scorer output into Feedback. Markdown code fences
// around the JSON are tolerated. Failures wrap ErrMalformedFeedback.
func ParseFeedback(text string) (Feedback, error) {
	body := stripCodeFence(text)
	if body == "" {
		return Feedback{}, fmt.Errorf("%w: empty response", ErrMalformedFeedback)
	}
	if isNull([]byte(body)) {
		return Feedback{}, fmt.Errorf("%w: null feedback", ErrMalformedFeedback)
	}
	var fb Feedback
	if err := json.Unmarshal([]byte(body), &fb); err != nil {
		return Feedback{}, fmt.Errorf("%w: %v", ErrMalformedFeedback, err)
	}
	return fb, nil
}

func decodeScore(raw json.RawMessage, field string) (float64, error) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || isNull(raw) {
		return 0, fmt.Errorf("%s must be a number", field)
	}
	return v, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func compactJSON(raw []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
