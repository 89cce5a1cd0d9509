package utils

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)

var alnumToken = regexp.MustCompile(`^[a-z0-9\-_]+$`)

// ExtractEmail finds the first email address in text, trying the standard
// written form first and then the spoken form callers use on the phone
// ("jane dot doe at example dot com"). Matching is case-insensitive; the
// spoken form accepts "(at)", "AT", "(dot)" and "period" variants.
func ExtractEmail(text string) (string, bool) {
	if m := emailPattern.FindString(text); m != "" {
		return strings.ToLower(m), true
	}
	return extractSpokenEmail(text)
}

// extractSpokenEmail reconstructs an address from spoken-form tokens. The
// rightmost "at" wins: in "reach me at jane dot doe at example dot com" the
// separator is the second "at", not the filler word.
func extractSpokenEmail(text string) (string, bool) {
	tokens := spokenTokens(text)

	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i] != "at" {
			continue
		}
		domain, ok := parseSpokenDomain(tokens[i+1:])
		if !ok {
			continue
		}
		local, ok := parseSpokenLocal(tokens[:i])
		if !ok {
			continue
		}
		return local + "@" + domain, true
	}
	return "", false
}

func spokenTokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'")
		switch f {
		case "(at)":
			f = "at"
		case "(dot)", "period":
			f = "dot"
		}
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// parseSpokenDomain consumes "word dot word [dot word ...]" from the front of
// tokens. At least one "dot" is required and the final label must look like a
// TLD.
func parseSpokenDomain(tokens []string) (string, bool) {
	var labels []string
	i := 0
	for {
		if i >= len(tokens) || !alnumToken.MatchString(tokens[i]) || tokens[i] == "at" || tokens[i] == "dot" {
			break
		}
		labels = append(labels, tokens[i])
		i++
		if i+1 < len(tokens) && tokens[i] == "dot" && alnumToken.MatchString(tokens[i+1]) && tokens[i+1] != "dot" {
			i++
			continue
		}
		break
	}
	if len(labels) < 2 {
		return "", false
	}
	tld := labels[len(labels)-1]
	if len(tld) < 2 || strings.ContainsAny(tld, "0123456789-_") {
		return "", false
	}
	return strings.Join(labels, "."), true
}

// parseSpokenLocal consumes the trailing "word [dot word ...]" chain from
// tokens, walking backwards from the separator.
func parseSpokenLocal(tokens []string) (string, bool) {
	var rev []string
	i := len(tokens) - 1
	for {
		if i < 0 || !alnumToken.MatchString(tokens[i]) || tokens[i] == "at" || tokens[i] == "dot" {
			break
		}
		rev = append(rev, tokens[i])
		i--
		if i-1 >= 0 && tokens[i] == "dot" && alnumToken.MatchString(tokens[i-1]) && tokens[i-1] != "dot" && tokens[i-1] != "at" {
			i--
			continue
		}
		break
	}
	if len(rev) == 0 {
		return "", false
	}
	for l, r := 0, len(rev)-1; l < r; l, r = l+1, r-1 {
		rev[l], rev[r] = rev[r], rev[l]
	}
	return strings.Join(rev, "."), true
}
