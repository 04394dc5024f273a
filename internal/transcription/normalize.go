package transcription

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// MaxWordGroupSpan is the longest caption, in seconds, built from word tokens
const MaxWordGroupSpan = 3.0

const (
	defaultWordLength    = 0.5
	defaultSegmentLength = 2.0
)

// Seconds is a timestamp that tolerates missing, null or non-numeric JSON values
type Seconds struct {
	Value float64
	Valid bool
}

// At returns a present timestamp
func At(v float64) Seconds {
	return Seconds{Value: v, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Seconds) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = Seconds{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		*s = Seconds{}
		return nil
	}
	*s = Seconds{Value: v, Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler
func (s Seconds) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// DeepgramResponse is the subset of a Deepgram /v1/listen response we consume
type DeepgramResponse struct {
	Results DeepgramResults `json:"results"`
}

// DeepgramResults holds per-channel alternatives and utterances
type DeepgramResults struct {
	Channels   []DeepgramChannel   `json:"channels"`
	Utterances []DeepgramUtterance `json:"utterances"`
}

// DeepgramChannel is one audio channel of the response
type DeepgramChannel struct {
	Alternatives []DeepgramAlternative `json:"alternatives"`
}

// DeepgramAlternative is one transcription hypothesis
type DeepgramAlternative struct {
	Transcript string              `json:"transcript"`
	Paragraphs *DeepgramParagraphs `json:"paragraphs"`
	Words      []DeepgramWord      `json:"words"`
}

// DeepgramParagraphs wraps the paragraph list
type DeepgramParagraphs struct {
	Paragraphs []DeepgramParagraph `json:"paragraphs"`
}

// DeepgramParagraph is a paragraph-level segment
type DeepgramParagraph struct {
	Text      string             `json:"text"`
	Start     Seconds            `json:"start"`
	End       Seconds            `json:"end"`
	Sentences []DeepgramSentence `json:"sentences"`
}

// DeepgramSentence is a sentence inside a paragraph
type DeepgramSentence struct {
	Text  string  `json:"text"`
	Start Seconds `json:"start"`
	End   Seconds `json:"end"`
}

// DeepgramUtterance is an utterance-level segment
type DeepgramUtterance struct {
	Transcript string  `json:"transcript"`
	Start      Seconds `json:"start"`
	End        Seconds `json:"end"`
}

// DeepgramWord is a word-level token
type DeepgramWord struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          Seconds `json:"start"`
	End            Seconds `json:"end"`
}

// Segment is a segment-level result of providers without paragraph structure
type Segment struct {
	Text  string  `json:"text"`
	Start Seconds `json:"start"`
	End   Seconds `json:"end"`
}

// NormalizeDeepgram turns a Deepgram response into captions.
// Paragraphs win over utterances, which win over grouped words.
func NormalizeDeepgram(resp *DeepgramResponse) []types.Caption {
	if resp == nil {
		return []types.Caption{}
	}

	alt := firstAlternative(resp)

	if alt != nil && alt.Paragraphs != nil {
		raw := make([]types.Caption, 0, len(alt.Paragraphs.Paragraphs))
		for _, p := range alt.Paragraphs.Paragraphs {
			raw = append(raw, types.Caption{
				Text:      paragraphText(p),
				StartTime: p.Start.Value,
				EndTime:   p.End.Value,
			})
		}
		if out := clean(raw); len(out) > 0 {
			return out
		}
	}

	raw := make([]types.Caption, 0, len(resp.Results.Utterances))
	for _, u := range resp.Results.Utterances {
		raw = append(raw, types.Caption{
			Text:      u.Transcript,
			StartTime: u.Start.Value,
			EndTime:   u.End.Value,
		})
	}
	if out := clean(raw); len(out) > 0 {
		return out
	}

	if alt == nil {
		return []types.Caption{}
	}
	return GroupWords(alt.Words, MaxWordGroupSpan)
}

// GroupWords greedily joins consecutive words into captions.
// A caption closes when the next word would end more than maxSpan seconds
// after the caption's start; that word opens the next caption.
func GroupWords(words []DeepgramWord, maxSpan float64) []types.Caption {
	var (
		grouped []types.Caption
		current *types.Caption
	)

	for _, w := range words {
		text := strings.TrimSpace(w.PunctuatedWord)
		if text == "" {
			text = strings.TrimSpace(w.Word)
		}
		if text == "" {
			continue
		}

		start := w.Start.Value
		end := start + defaultWordLength
		if w.End.Valid {
			end = w.End.Value
		}

		if current == nil {
			current = &types.Caption{Text: text, StartTime: start, EndTime: end}
			continue
		}

		if end-current.StartTime > maxSpan {
			grouped = append(grouped, *current)
			current = &types.Caption{Text: text, StartTime: start, EndTime: end}
			continue
		}

		current.Text += " " + text
		current.EndTime = end
	}

	if current != nil {
		grouped = append(grouped, *current)
	}

	return clean(grouped)
}

// NormalizeSegments maps provider segments 1:1 to captions.
// A missing end defaults to two seconds after the start.
func NormalizeSegments(segments []Segment) []types.Caption {
	raw := make([]types.Caption, 0, len(segments))
	for _, s := range segments {
		end := s.End.Value
		if !s.End.Valid {
			end = s.Start.Value + defaultSegmentLength
		}
		raw = append(raw, types.Caption{
			Text:      s.Text,
			StartTime: s.Start.Value,
			EndTime:   end,
		})
	}
	return clean(raw)
}

func firstAlternative(resp *DeepgramResponse) *DeepgramAlternative {
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return nil
	}
	return &resp.Results.Channels[0].Alternatives[0]
}

func paragraphText(p DeepgramParagraph) string {
	if strings.TrimSpace(p.Text) != "" || len(p.Sentences) == 0 {
		return p.Text
	}
	parts := make([]string, 0, len(p.Sentences))
	for _, s := range p.Sentences {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// clean trims text and drops captions with empty text or non-positive duration
func clean(list []types.Caption) []types.Caption {
	out := make([]types.Caption, 0, len(list))
	for _, c := range list {
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" || c.EndTime <= c.StartTime {
			continue
		}
		out = append(out, c)
	}
	return out
}
