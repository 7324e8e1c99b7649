package assessment

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// sourceMatcher pairs a source with one pattern covering all of its keys.
// re is nil when the source has nothing a text could mention.
type sourceMatcher struct {
	src entity.CitationSource
	re  *regexp.Regexp
}

func compileSources(sources []entity.CitationSource) []sourceMatcher {
	ms := make([]sourceMatcher, len(sources))
	for i, c := range sources {
		ms[i].src = c
		ks := keys(c)
		if len(ks) == 0 {
			continue
		}
		for j, k := range ks {
			ks[j] = regexp.QuoteMeta(k)
		}
		ms[i].re = regexp.MustCompile(`(?i)\b(?:` + strings.Join(ks, "|") + `)\b`)
	}
	return ms
}

func (m sourceMatcher) matches(text string) bool {
	return m.re != nil && m.re.MatchString(text)
}

// number assigns numbers in first-reference order and sorts ms by them.
func number(ms []sourceMatcher, texts []string) {
	for i := range ms {
		ms[i].src.Number = 0
	}
	next := 1
	for _, t := range texts {
		for i := range ms {
			if ms[i].src.Number == 0 && ms[i].matches(t) {
				ms[i].src.Number = next
				next++
			}
		}
	}
	for i := range ms {
		if ms[i].src.Number == 0 {
			ms[i].src.Number = next
			next++
		}
	}
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].src.Number < ms[j].src.Number })
}

func inline(ms []sourceMatcher, texts []string) map[string][]int {
	m := map[string][]int{}
	for _, t := range texts {
		for _, sm := range ms {
			if sm.matches(t) {
				m[t] = append(m[t], sm.src.Number)
			}
		}
	}
	return m
}

func sourcesOf(ms []sourceMatcher) []entity.CitationSource {
	out := make([]entity.CitationSource, len(ms))
	for i, m := range ms {
		out[i] = m.src
	}
	return out
}

// NumberCitations assigns citation numbers in the order sources are first
// referenced by texts. Unreferenced sources follow in their given order.
func NumberCitations(sources []entity.CitationSource, texts []string) []entity.CitationSource {
	ms := compileSources(sources)
	number(ms, texts)
	return sourcesOf(ms)
}

// InlineCitations maps each text to the numbers of the sources it mentions.
func InlineCitations(citations []entity.CitationSource, texts []string) map[string][]int {
	return inline(compileSources(citations), texts)
}

// keys are the strings a text may use to refer to a source: its title, its
// host, and the host's leading label (e.g. "fda" for www.fda.gov).
func keys(c entity.CitationSource) []string {
	var out []string
	if t := strings.TrimSpace(c.Title); t != "" {
		out = append(out, t)
	}
	if c.URL == "" {
		return out
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Hostname() == "" {
		return out
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	out = append(out, host)
	if label, _, ok := strings.Cut(host, "."); ok && len(label) >= 3 && label != "world" && label != "en" {
		out = append(out, label)
	}
	if strings.Contains(host, "openfoodfacts") {
		out = append(out, "Open Food Facts")
	}
	return out
}
