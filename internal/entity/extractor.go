package entity

import (
	"fmt"
	"strings"

	appLog "vnsched/internal/log"
	"vnsched/internal/wordre"
)

// Result holds the phrases found in one sentence. Empty strings mean "not
// found".
type Result struct {
	Time     string
	EndTime  string
	Location string

	// EndInherited is set when EndTime borrowed the day/period words of
	// Time because it had none of its own ("từ 9h sáng đến 10h").
	EndInherited bool
}

// Extractor orchestrates range detection, tagging, regex scanning and
// merging. It holds no per-call state.
type Extractor struct {
	tagger  Tagger
	scanner *Scanner
	ranges  []*wordre.Regexp
}

// NewExtractor returns an Extractor. tagger may be nil, in which case only
// the regex fallback contributes candidates. A nil scanner uses NewScanner.
func NewExtractor(tagger Tagger, scanner *Scanner) *Extractor {
	if scanner == nil {
		scanner = NewScanner()
	}
	return &Extractor{
		tagger:  tagger,
		scanner: scanner,
		// "đến" is tried before "tới" so "từ 9h thứ 2 tuần tới đến 11h"
		// does not split at the week modifier.
		ranges: []*wordre.Regexp{
			wordre.MustCompile(`(?i)từ\s+(.*?)\s+đến\s+(.*?)(?:,|$|\s(?:nhắc|báo)|\s(?:ở|tại)\s)`, wordre.Left),
			wordre.MustCompile(`(?i)từ\s+(.*?)\s+tới\s+(.*?)(?:,|$|\s(?:nhắc|báo)|\s(?:ở|tại)\s)`, wordre.Left),
		},
	}
}

// Scanner exposes the fallback scanner, e.g. for the location-only retry.
func (e *Extractor) Scanner() *Scanner { return e.scanner }

// Extract returns the time, end-time and location phrases of text.
func (e *Extractor) Extract(text string) Result {
	if res, ok := e.extractRange(text); ok {
		appLog.Debug("entity range matched", "start", res.Time, "end", res.EndTime, "inherited", res.EndInherited)
		return res
	}

	cands := e.tag(text)
	cands = append(cands, e.scanner.Scan(text)...)

	return Result{
		Time:     Merge(texts(cands, KindTime), text),
		Location: Merge(texts(cands, KindLoc), text),
	}
}

// extractRange handles "từ A đến/tới B". A is taken verbatim as the start
// phrase and B as the end phrase.
func (e *Extractor) extractRange(text string) (Result, bool) {
	for _, re := range e.ranges {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		start, end := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if start == "" || end == "" {
			continue
		}

		res := Result{
			Time:     start,
			EndTime:  end,
			Location: Merge(e.scanner.Locations(text), text),
		}
		startCtx := DayContext(start)
		if len(startCtx) > 0 && len(DayContext(end)) == 0 {
			res.EndTime = end + " " + strings.Join(startCtx, " ")
			res.EndInherited = true
		}
		return res, true
	}
	return Result{}, false
}

// tag runs the injected tagger. A missing, failing or panicking tagger
// contributes nothing.
func (e *Extractor) tag(text string) (out []Candidate) {
	if e.tagger == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			appLog.Error("tagger panicked; using regex fallback only", fmt.Errorf("%v", r))
			out = nil
		}
	}()

	tokens, err := e.tagger.Tag(text)
	if err != nil {
		appLog.Debug("tagger unavailable; using regex fallback only", "err", err)
		return nil
	}
	return candidatesFromTokens(tokens)
}

var (
	contextSingles = map[string]bool{
		"sáng": true, "trưa": true, "chiều": true, "tối": true, "đêm": true,
		"mai": true, "nay": true, "mốt": true, "ngày": true, "cn": true, "hnay": true,
	}
	// Words that only mean something together with the next token.
	contextPairs = map[string]bool{"thứ": true, "tuần": true, "chủ": true}
)

// DayContext returns the day and period-of-day markers of a time phrase, in
// order: period words, relative days, weekday and week tokens, slash dates.
func DayContext(phrase string) []string {
	words := strings.Fields(phrase)
	var out []string
	for i := 0; i < len(words); i++ {
		w := words[i]
		switch {
		case contextPairs[w] && i+1 < len(words):
			out = append(out, w+" "+words[i+1])
			i++
		case contextSingles[w]:
			out = append(out, w)
		case isSlashDate(w):
			out = append(out, w)
		}
	}
	return out
}

func isSlashDate(w string) bool {
	return strings.Contains(w, "/") && strings.ContainsAny(w, "0123456789")
}
