// Package accepts implements HTTP content negotiation over the Accept,
// Accept-Encoding, Accept-Charset and Accept-Language request headers.
//
// Every method follows the same convention: with no offers it returns what
// the client accepts ordered by preference; with offers it returns the
// acceptable offers ordered by the client's preference, with ties broken by
// offer order.
package accepts

import (
	"cmp"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Accepts negotiates against one request's headers.
type Accepts struct {
	header http.Header
}

// New returns a negotiator for the given request headers.
func New(h http.Header) *Accepts {
	if h == nil {
		h = http.Header{}
	}
	return &Accepts{header: h}
}

// Types negotiates media types. Offers may be full types ("application/json"),
// extensions ("json", ".json") or the shorthands understood by Lookup.
func (a *Accepts) Types(offers ...string) []string {
	accepted := parseMediaRanges(headerOr(a.header, "Accept", "*/*"))
	if len(offers) == 0 {
		out := make([]string, 0, len(accepted))
		for _, r := range accepted {
			if r.q > 0 {
				out = append(out, r.full())
			}
		}
		return out
	}

	return negotiate(offers, func(offer string) (float64, int, bool) {
		typ := Lookup(offer)
		if typ == "" {
			return 0, 0, false
		}
		return matchMedia(typ, accepted)
	})
}

// Type returns the best offer, or "" when none is acceptable.
func (a *Accepts) Type(offers ...string) string {
	return first(a.Types(offers...))
}

// Encodings negotiates content codings. identity is acceptable unless
// explicitly refused.
func (a *Accepts) Encodings(offers ...string) []string {
	accepted := parseSimple(a.header.Get("Accept-Encoding"))
	if !hasToken(accepted, "identity") {
		q := 1.0
		if star, ok := findToken(accepted, "*"); ok {
			q = star.q
		} else if len(accepted) > 0 {
			q = minQ(accepted)
		}
		accepted = append(accepted, token{value: "identity", q: q, index: len(accepted)})
	}
	return a.simple(accepted, offers)
}

// Encoding returns the best coding, or "".
func (a *Accepts) Encoding(offers ...string) string {
	return first(a.Encodings(offers...))
}

// Charsets negotiates charsets.
func (a *Accepts) Charsets(offers ...string) []string {
	return a.simple(parseSimple(headerOr(a.header, "Accept-Charset", "*")), offers)
}

// Charset returns the best charset, or "".
func (a *Accepts) Charset(offers ...string) string {
	return first(a.Charsets(offers...))
}

// Languages negotiates languages. An accepted "en" matches the offer "en-US"
// and an accepted "en-US" matches the offer "en", both ranked below exact
// matches.
func (a *Accepts) Languages(offers ...string) []string {
	raw := headerOr(a.header, "Accept-Language", "*")
	tags, weights, _ := language.ParseAcceptLanguage(raw)
	wildcard := wildcardQ(raw)

	if len(offers) == 0 {
		out := make([]string, 0, len(tags))
		for i, t := range tags {
			// "*" parses as "mul"
			if weights[i] > 0 && t != language.Und && t.String() != "mul" {
				out = append(out, t.String())
			}
		}
		if wildcard > 0 && len(out) == 0 {
			out = append(out, "*")
		}
		return out
	}

	return negotiate(offers, func(offer string) (float64, int, bool) {
		ot, err := language.Parse(offer)
		if err != nil {
			return 0, 0, false
		}
		ob, _ := ot.Base()

		offerFull := strings.ToLower(ot.String())

		bestQ, bestS, found := 0.0, -1, false
		for i, t := range tags {
			tb, _ := t.Base()
			s := -1
			switch {
			case strings.ToLower(t.String()) == offerFull:
				s = 4
			case tb == ob && t.String() == tb.String():
				s = 2
			case tb == ob:
				s = 1
			}
			if s < 0 {
				continue
			}
			if s > bestS || (s == bestS && float64(weights[i]) > bestQ) {
				bestQ, bestS, found = float64(weights[i]), s, true
			}
		}
		if !found && wildcard >= 0 {
			return wildcard, 0, wildcard > 0
		}
		return bestQ, bestS, found && bestQ > 0
	})
}

// Language returns the best language, or "".
func (a *Accepts) Language(offers ...string) string {
	return first(a.Languages(offers...))
}

func (a *Accepts) simple(accepted []token, offers []string) []string {
	if len(offers) == 0 {
		sorted := slices.Clone(accepted)
		slices.SortStableFunc(sorted, func(x, y token) int { return cmp.Compare(y.q, x.q) })
		out := make([]string, 0, len(sorted))
		for _, t := range sorted {
			if t.q > 0 {
				out = append(out, t.value)
			}
		}
		return out
	}

	return negotiate(offers, func(offer string) (float64, int, bool) {
		if t, ok := findToken(accepted, offer); ok {
			return t.q, 1, t.q > 0
		}
		if star, ok := findToken(accepted, "*"); ok {
			return star.q, 0, star.q > 0
		}
		return 0, 0, false
	})
}

// Lookup resolves a type shorthand or extension to a media type, or returns
// s unchanged when it already contains a slash. It returns "" when unknown.
func Lookup(s string) string {
	if strings.Contains(s, "/") {
		return s
	}
	ext := strings.ToLower(strings.TrimPrefix(s, "."))
	if t, ok := shorthands[ext]; ok {
		return t
	}
	t := mime.TypeByExtension("." + ext)
	if t == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(t)
	if err != nil {
		return ""
	}
	return mt
}

var shorthands = map[string]string{
	"html":       "text/html",
	"htm":        "text/html",
	"text":       "text/plain",
	"txt":        "text/plain",
	"json":       "application/json",
	"xml":        "application/xml",
	"js":         "text/javascript",
	"css":        "text/css",
	"bin":        "application/octet-stream",
	"form":       "application/x-www-form-urlencoded",
	"urlencoded": "application/x-www-form-urlencoded",
	"multipart":  "multipart/*",
	"png":        "image/png",
	"jpg":        "image/jpeg",
	"jpeg":       "image/jpeg",
	"gif":        "image/gif",
	"svg":        "image/svg+xml",
	"pdf":        "application/pdf",
}

type mediaRange struct {
	typ, subtype string
	params       map[string]string
	q            float64
	index        int
}

func (m mediaRange) full() string {
	return m.typ + "/" + m.subtype
}

func parseMediaRanges(header string) []mediaRange {
	var out []mediaRange
	for i, part := range splitList(header) {
		mt, params, err := mime.ParseMediaType(part)
		if err != nil {
			// ParseMediaType rejects a bare "*"
			if strings.TrimSpace(part) == "*" {
				mt, params = "*/*", map[string]string{}
			} else {
				continue
			}
		}
		typ, sub, ok := strings.Cut(mt, "/")
		if !ok {
			continue
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			q = parseQ(v)
			delete(params, "q")
		}
		out = append(out, mediaRange{typ: typ, subtype: sub, params: params, q: q, index: i})
	}
	slices.SortStableFunc(out, func(a, b mediaRange) int { return cmp.Compare(b.q, a.q) })
	return out
}

// matchMedia returns the quality and specificity of the best range matching typ.
func matchMedia(typ string, ranges []mediaRange) (float64, int, bool) {
	t, sub, _ := strings.Cut(strings.ToLower(typ), "/")

	bestQ, bestS, found := 0.0, -1, false
	for _, r := range ranges {
		s := 0
		switch {
		case r.typ == t:
			s |= 4
		case r.typ != "*":
			continue
		}
		switch {
		case r.subtype == sub:
			s |= 2
		case r.subtype != "*" && sub != "*":
			continue
		}
		if len(r.params) > 0 {
			s |= 1
		}
		if s > bestS {
			bestQ, bestS, found = r.q, s, true
		}
	}
	return bestQ, bestS, found && bestQ > 0
}

type token struct {
	value string
	q     float64
	index int
}

func parseSimple(header string) []token {
	var out []token
	for i, part := range splitList(header) {
		value, rest, _ := strings.Cut(part, ";")
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		q := 1.0
		for _, p := range strings.Split(rest, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if ok && strings.EqualFold(k, "q") {
				q = parseQ(v)
			}
		}
		out = append(out, token{value: value, q: q, index: i})
	}
	return out
}

func findToken(tokens []token, value string) (token, bool) {
	value = strings.ToLower(value)
	for _, t := range tokens {
		if t.value == value {
			return t, true
		}
	}
	return token{}, false
}

func hasToken(tokens []token, value string) bool {
	_, ok := findToken(tokens, value)
	return ok
}

func minQ(tokens []token) float64 {
	m := 1.0
	for _, t := range tokens {
		m = min(m, t.q)
	}
	return m
}

// wildcardQ returns the quality of a "*" language range, or -1 when absent.
func wildcardQ(header string) float64 {
	for _, t := range parseSimple(header) {
		if t.value == "*" {
			return t.q
		}
	}
	return -1
}

type ranked struct {
	offer string
	q     float64
	s     int
	index int
}

// negotiate scores every offer with match and returns the acceptable ones
// ordered by quality, then specificity, then offer order.
func negotiate(offers []string, match func(string) (float64, int, bool)) []string {
	var candidates []ranked
	for i, offer := range offers {
		q, s, ok := match(offer)
		if !ok {
			continue
		}
		candidates = append(candidates, ranked{offer: offer, q: q, s: s, index: i})
	}
	slices.SortStableFunc(candidates, func(a, b ranked) int {
		if c := cmp.Compare(b.q, a.q); c != 0 {
			return c
		}
		if c := cmp.Compare(b.s, a.s); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.offer
	}
	return out
}

func splitList(header string) []string {
	var out []string
	for _, p := range strings.Split(header, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseQ(v string) float64 {
	q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || q < 0 {
		return 0
	}
	return min(q, 1)
}

func headerOr(h http.Header, key, fallback string) string {
	if _, ok := h[http.CanonicalHeaderKey(key)]; !ok {
		return fallback
	}
	return h.Get(key)
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
