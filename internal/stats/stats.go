// Package stats computes the feedback report served by the /stats command.
package stats

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rentagg/feedbot/internal/i18n"
	"github.com/rentagg/feedbot/internal/models"
	"github.com/rentagg/feedbot/internal/records"
)

// Report aggregation constants
const (
	// TopWordCount is how many frequent tokens the report lists.
	TopWordCount = 10
	// MinTokenLength filters out short tokens before counting.
	MinTokenLength = 3
	// ScaleMin and ScaleMax bound the numeric answers included in means.
	ScaleMin = 1
	ScaleMax = 10
)

// stopwords excluded from the free-text frequency list. Covers the
// connective words that dominate ru/uz/en feedback text.
var stopwords = map[string]struct{}{
	"это": {}, "как": {}, "что": {}, "для": {}, "при": {}, "или": {},
	"все": {}, "всё": {}, "еще": {}, "ещё": {}, "очень": {}, "было": {},
	"быть": {}, "нет": {}, "они": {}, "оно": {}, "она": {}, "тоже": {},
	"только": {}, "чтобы": {}, "если": {}, "есть": {}, "надо": {},
	"можно": {}, "нужно": {}, "когда": {}, "после": {}, "перед": {},
	"учун": {}, "билан": {}, "лекин": {}, "яна": {}, "ёки": {},
	"керак": {}, "бор": {}, "йўқ": {}, "жуда": {},
	"the": {}, "and": {}, "for": {}, "not": {}, "with": {}, "was": {},
}

// WordCount is one entry of the frequent-token list.
type WordCount struct {
	Word  string
	Count int
}

// Report is the computed aggregate over all feedback rows.
type Report struct {
	Total          int
	Q1Distribution map[string]int
	Q2Mean         float64
	Q2Count        int
	Q5Mean         float64
	Q5Count        int
	TopWords       []WordCount
}

// Compute aggregates the feedback rows. Rows with no survey content (sparse
// amendment rows) still count toward Total but contribute nothing else.
func Compute(rows []map[string]string) Report {
	r := Report{Q1Distribution: make(map[string]int)}
	r.Total = len(rows)

	var q2Sum, q5Sum int
	wordCounts := make(map[string]int)
	for _, rec := range rows {
		if v := rec[records.ColQ1]; v != "" {
			r.Q1Distribution[v]++
		}
		if n, ok := scaleValue(rec[records.ColQ2]); ok {
			q2Sum += n
			r.Q2Count++
		}
		if n, ok := scaleValue(rec[records.ColQ5]); ok {
			q5Sum += n
			r.Q5Count++
		}
		countTokens(wordCounts, rec[records.ColQ3])
		countTokens(wordCounts, rec[records.ColQ4])
	}
	if r.Q2Count > 0 {
		r.Q2Mean = float64(q2Sum) / float64(r.Q2Count)
	}
	if r.Q5Count > 0 {
		r.Q5Mean = float64(q5Sum) / float64(r.Q5Count)
	}
	r.TopWords = topWords(wordCounts, TopWordCount)
	return r
}

// Render formats the report for the requesting user's locale. An empty
// table renders as the no-data message with no further content.
func Render(r Report, loc models.Locale) string {
	if r.Total == 0 {
		return i18n.Text(loc, "stats_empty")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", i18n.Text(loc, "stats_header"))
	fmt.Fprintf(&b, "%s: %d\n", i18n.Text(loc, "stats_total"), r.Total)

	if len(r.Q1Distribution) > 0 {
		fmt.Fprintf(&b, "\n%s:\n", i18n.Text(loc, "stats_q1"))
		keys := make([]string, 0, len(r.Q1Distribution))
		for k := range r.Q1Distribution {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if r.Q1Distribution[keys[i]] != r.Q1Distribution[keys[j]] {
				return r.Q1Distribution[keys[i]] > r.Q1Distribution[keys[j]]
			}
			return keys[i] < keys[j]
		})
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s — %d\n", k, r.Q1Distribution[k])
		}
	}
	if r.Q2Count > 0 {
		fmt.Fprintf(&b, "\n%s: %.1f\n", i18n.Text(loc, "stats_q2"), r.Q2Mean)
	}
	if r.Q5Count > 0 {
		fmt.Fprintf(&b, "%s: %.1f\n", i18n.Text(loc, "stats_q5"), r.Q5Mean)
	}
	if len(r.TopWords) > 0 {
		fmt.Fprintf(&b, "\n%s:\n", i18n.Text(loc, "stats_words"))
		for _, wc := range r.TopWords {
			fmt.Fprintf(&b, "  %s — %d\n", wc.Word, wc.Count)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// scaleValue parses a numeric-scale answer, rejecting values outside 1–10.
func scaleValue(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < ScaleMin || n > ScaleMax {
		return 0, false
	}
	return n, true
}

// countTokens tokenizes free text and counts the tokens that pass the
// stopword and length filters.
func countTokens(counts map[string]int, text string) {
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	}) {
		if len([]rune(tok)) < MinTokenLength {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		counts[tok]++
	}
}

func isWordRune(r rune) bool {
	return r == '-' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= 'а' && r <= 'я') || (r >= 'А' && r <= 'Я') ||
		r == 'ё' || r == 'Ё' || r == 'ў' || r == 'Ў' || r == 'қ' || r == 'Қ' ||
		r == 'ғ' || r == 'Ғ' || r == 'ҳ' || r == 'Ҳ'
}

// topWords returns the n most frequent tokens, ties broken alphabetically.
func topWords(counts map[string]int, n int) []WordCount {
	out := make([]WordCount, 0, len(counts))
	for w, c := range counts {
		out = append(out, WordCount{Word: w, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
