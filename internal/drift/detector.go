// Package drift detects topical divergence in a conversation. The
// detector keeps a rolling keyword centroid over recent messages and
// scores each new message against it; a low similarity is reported as
// drift. It tracks rolling topical continuity rather than fixed
// sessions: every scored message is folded into the window afterward,
// drift or not, so the centroid follows a legitimately evolving
// conversation while still catching abrupt jumps.
//
// The detector never decides when to summarize; that is the budget
// manager's job, fed by the drift signal.
package drift

import (
	"regexp"
	"sort"
	"strings"
)

// Result is the outcome of scoring one message.
type Result struct {
	IsDrift    bool
	Similarity float64
	Keywords   []string
}

var wordPattern = regexp.MustCompile(`\b[a-z]{3,}\b`)

// stopWords are excluded from keyword extraction.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "an", "the", "is", "are", "was", "were", "be", "been",
		"being", "have", "has", "had", "do", "does", "did", "will",
		"would", "could", "should", "may", "might", "must", "shall",
		"can", "to", "of", "in", "for", "on", "with", "at", "by",
		"from", "as", "into", "through", "during", "before", "after",
		"above", "below", "between", "under", "again", "further",
		"then", "once", "here", "there", "when", "where", "why",
		"how", "all", "each", "few", "more", "most", "other", "some",
		"such", "no", "nor", "not", "only", "own", "same", "so",
		"than", "too", "very", "just", "and", "but", "if", "or",
		"because", "until", "while", "about", "against", "this",
		"that", "these", "those", "am", "i", "you", "he", "she",
		"it", "we", "they", "what", "which", "who", "whom", "its",
		"his", "her", "their", "my", "your", "our", "me", "him",
		"them", "us", "also", "get", "got", "make", "made", "like",
		"want", "need", "know", "think", "see", "look", "use",
	} {
		stopWords[w] = struct{}{}
	}
}

// Detector scores messages for divergence from the rolling centroid.
// Not safe for concurrent use; the controller serializes turns.
type Detector struct {
	windowSize int
	threshold  float64

	window   []map[string]struct{}
	centroid map[string]int
}

// NewDetector creates a detector with the given window size and
// similarity threshold. Out-of-range values fall back to usable ones.
func NewDetector(windowSize int, threshold float64) *Detector {
	if windowSize < 1 {
		windowSize = 1
	}
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	return &Detector{
		windowSize: windowSize,
		threshold:  threshold,
		centroid:   make(map[string]int),
	}
}

// Threshold returns the similarity threshold.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Analyze scores a message against the centroid, then folds its
// keywords into the window. With fewer than 2 prior windowed messages
// drift cannot be determined: the result is no-drift with similarity
// 1.0, and the message still seeds the window.
func (d *Detector) Analyze(message string) Result {
	keywords := extractKeywords(message)

	if len(d.window) < 2 {
		d.addToWindow(keywords)
		return Result{IsDrift: false, Similarity: 1.0, Keywords: keywordList(keywords)}
	}

	similarity := d.similarity(keywords)
	isDrift := similarity < d.threshold

	d.addToWindow(keywords)

	return Result{IsDrift: isDrift, Similarity: similarity, Keywords: keywordList(keywords)}
}

// TopKeywords returns the n most frequent centroid keywords, useful for
// status display and debugging.
func (d *Detector) TopKeywords(n int) []string {
	type wc struct {
		word  string
		count int
	}
	all := make([]wc, 0, len(d.centroid))
	for w, c := range d.centroid {
		all = append(all, wc{w, c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].word < all[j].word
	})
	if n > len(all) {
		n = len(all)
	}
	out := make([]string, 0, n)
	for _, e := range all[:n] {
		out = append(out, e.word)
	}
	return out
}

// Reset clears all window and centroid state.
func (d *Detector) Reset() {
	d.window = nil
	d.centroid = make(map[string]int)
}

// Rebaseline recalculates the centroid from the given messages, most
// recent last. Used after summarization so the centroid reflects only
// the surviving active messages.
func (d *Detector) Rebaseline(messages []string) {
	d.Reset()
	start := 0
	if len(messages) > d.windowSize {
		start = len(messages) - d.windowSize
	}
	for _, msg := range messages[start:] {
		d.addToWindow(extractKeywords(msg))
	}
}

// similarity computes the weighted overlap between the message keywords
// and the centroid: each shared word contributes min(1, count/2),
// normalized by the size of the union of both keyword sets.
func (d *Detector) similarity(keywords map[string]struct{}) float64 {
	if len(keywords) == 0 || len(d.centroid) == 0 {
		return 0.0
	}

	overlap := 0.0
	for word := range keywords {
		if count, ok := d.centroid[word]; ok {
			w := float64(count) / 2
			if w > 1 {
				w = 1
			}
			overlap += w
		}
	}

	union := len(keywords)
	for word := range d.centroid {
		if _, ok := keywords[word]; !ok {
			union++
		}
	}
	if union == 0 {
		return 0.0
	}

	return overlap / float64(union)
}

// addToWindow appends a keyword set and evicts the oldest entry once
// the window exceeds its size. Centroid counts are decremented on
// eviction and deleted at zero, never negative.
func (d *Detector) addToWindow(keywords map[string]struct{}) {
	d.window = append(d.window, keywords)
	for word := range keywords {
		d.centroid[word]++
	}

	if len(d.window) > d.windowSize {
		oldest := d.window[0]
		d.window = d.window[1:]
		for word := range oldest {
			d.centroid[word]--
			if d.centroid[word] <= 0 {
				delete(d.centroid, word)
			}
		}
	}
}

// extractKeywords lowercases the text and keeps alphabetic tokens of
// length >= 3 that are not stop words.
func extractKeywords(text string) map[string]struct{} {
	keywords := make(map[string]struct{})
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopWords[word]; !stop {
			keywords[word] = struct{}{}
		}
	}
	return keywords
}

func keywordList(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
