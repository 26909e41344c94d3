package language

import (
	"context"
	"errors"
	"strings"

	"github.com/pemistahl/lingua-go"
)

// ErrTranslation marks a failed translation backend call. In strict mode
// the request fails; otherwise the caller proceeds with the original text.
var ErrTranslation = errors.New("translation failed")

// Pivot is the language all retrieval and generation runs in. Queries in
// other languages are translated to it and answers translated back.
const Pivot = "en"

// Translator converts text between two ISO 639-1 language codes.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Detector resolves the language of free-form text. Detection never
// fails a request: anything unrecognizable is treated as the pivot
// language, which leaves the query untouched.
type Detector struct {
	detector lingua.LanguageDetector
}

func NewDetector() *Detector {
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromAllSpokenLanguages().
			Build(),
	}
}

// Detect returns the lowercase ISO 639-1 code of text, or Pivot when
// the text is too short or ambiguous to classify.
func (d *Detector) Detect(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Pivot
	}
	lang, ok := d.detector.DetectLanguageOf(trimmed)
	if !ok {
		return Pivot
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
