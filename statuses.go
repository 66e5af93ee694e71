package strata

import (
	"net/http"
	"strings"
)

// emptyStatus lists statuses that never carry a body.
var emptyStatus = map[int]bool{
	http.StatusNoContent:    true,
	http.StatusResetContent: true,
	http.StatusNotModified:  true,
}

var redirectStatus = map[int]bool{
	http.StatusMultipleChoices:   true,
	http.StatusMovedPermanently:  true,
	http.StatusFound:             true,
	http.StatusSeeOther:          true,
	http.StatusUseProxy:          true,
	http.StatusTemporaryRedirect: true,
	http.StatusPermanentRedirect: true,
}

// IsEmptyStatus reports whether code is a body-less status.
func IsEmptyStatus(code int) bool {
	return emptyStatus[code]
}

// IsRedirectStatus reports whether code is a redirect status.
func IsRedirectStatus(code int) bool {
	return redirectStatus[code]
}

// validStatus reports whether code is a registered HTTP status.
func validStatus(code int) bool {
	return http.StatusText(code) != ""
}

// statusMessage returns the reason phrase for code, or "" when unknown.
func statusMessage(code int) string {
	return http.StatusText(code)
}

// isFresh implements conditional GET freshness between request and response
// headers.
func isFresh(req, res http.Header) bool {
	modifiedSince := req.Get("If-Modified-Since")
	noneMatch := req.Get("If-None-Match")
	if modifiedSince == "" && noneMatch == "" {
		return false
	}

	if cc := req.Get("Cache-Control"); cc != "" && containsToken(cc, "no-cache") {
		return false
	}

	if noneMatch != "" && noneMatch != "*" {
		etag := res.Get("ETag")
		if etag == "" {
			return false
		}
		matched := false
		for _, tag := range strings.Split(noneMatch, ",") {
			tag = strings.TrimSpace(tag)
			if tag == etag || tag == "W/"+etag || "W/"+tag == etag {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if modifiedSince != "" {
		lastModified := res.Get("Last-Modified")
		if lastModified == "" {
			return false
		}
		lm, err1 := http.ParseTime(lastModified)
		ms, err2 := http.ParseTime(modifiedSince)
		if err1 != nil || err2 != nil || lm.After(ms) {
			return false
		}
	}

	return true
}

func containsToken(header, token string) bool {
	for _, part := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}
