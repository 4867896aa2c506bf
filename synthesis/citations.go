package synthesis

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/quarrylabs/quarry/schema"
)

// Verifier cross-checks an answer's citations against the passage set it
// was synthesized from. It never rejects an answer; it prunes citations
// that point at nothing and records unsupported references as a
// limitation.
type Verifier struct {
	tokenizer *sentences.DefaultSentenceTokenizer
	logger    *slog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierLogger sets the logger.
func WithVerifierLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// NewVerifier creates a Verifier.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{logger: slog.Default()}
	// Sentence segmentation uses the embedded English training data;
	// verification still works without it, at whole-text granularity.
	if tokenizer, err := english.NewSentenceTokenizer(nil); err == nil {
		v.tokenizer = tokenizer
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify returns a copy of the answer with its citations checked against
// the ranked set. Citations whose source does not appear in the set are
// dropped; bracketed references in the text that match no supplied
// passage are noted in the limitations.
func (v *Verifier) Verify(answer schema.Answer, ranked []schema.RankedPassage) schema.Answer {
	known := make(map[string]bool, len(ranked))
	for _, rp := range ranked {
		known[rp.Source] = true
	}

	verified := answer
	verified.CitedSources = nil
	for _, c := range answer.CitedSources {
		if known[c.Source] {
			verified.CitedSources = append(verified.CitedSources, c)
		}
	}
	dropped := len(answer.CitedSources) - len(verified.CitedSources)

	unsupported := v.unsupportedReferences(answer.Text, len(ranked))
	if dropped > 0 || unsupported > 0 {
		note := fmt.Sprintf("%d citation(s) could not be matched to retrieved passages", dropped+unsupported)
		if verified.Limitations != "" {
			verified.Limitations = verified.Limitations + "; " + note
		} else {
			verified.Limitations = note
		}
		v.logger.Warn("citation verification found mismatches",
			"dropped", dropped, "unsupported_refs", unsupported)
	}

	return verified
}

// unsupportedReferences counts bracketed passage references in the text
// that exceed the number of supplied passages, sentence by sentence.
func (v *Verifier) unsupportedReferences(text string, supplied int) int {
	count := 0
	for _, sentence := range v.split(text) {
		for _, ref := range bracketRefs(sentence) {
			if ref < 1 || ref > supplied {
				count++
			}
		}
	}
	return count
}

// split segments text into sentences, or returns it whole when no
// tokenizer is available.
func (v *Verifier) split(text string) []string {
	if v.tokenizer == nil {
		return []string{text}
	}
	segs := v.tokenizer.Tokenize(text)
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.Text
	}
	return out
}

// bracketRefs extracts the numbers of [n]-style references in a sentence.
func bracketRefs(sentence string) []int {
	var refs []int
	for i := 0; i < len(sentence); i++ {
		if sentence[i] != '[' {
			continue
		}
		end := strings.IndexByte(sentence[i:], ']')
		if end <= 1 {
			continue
		}
		num := 0
		valid := true
		for _, ch := range sentence[i+1 : i+end] {
			if ch < '0' || ch > '9' {
				valid = false
				break
			}
			num = num*10 + int(ch-'0')
		}
		if valid {
			refs = append(refs, num)
		}
		i += end
	}
	return refs
}
