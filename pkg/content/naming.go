// SPDX-License-Identifier: MPL-2.0

package content

import (
	"path"
	"regexp"
	"strings"
	"unicode"
)

// namingExceptions are conventional file names that predate the naming rule.
var (
	namingExceptions = map[string]bool{
		"README.md": true,
	}

	canonicalStemPattern = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// Canonical converts a display name or identifier into the lowercase
// underscore-separated form used for file names, directory names and the
// ordering of child entities.
//
//	Canonical("Get Alert Details") == "get_alert_details"
//	Canonical("JsonResult")        == "json_result"
//	Canonical("AWS - EC2")         == "aws_ec2"
func Canonical(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)

	runes := []rune(strings.TrimSpace(name))
	pendingSep := false
	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 && b.Len() > 0 && startsWord(runes, i) {
				pendingSep = true
			}
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}

// startsWord reports whether the upper-case rune at i begins a new word in a
// camel-case name: "JsonResult" splits before R, "HTTPServer" before S.
func startsWord(runes []rune, i int) bool {
	prev := runes[i-1]
	if unicode.IsLower(prev) || unicode.IsDigit(prev) {
		return true
	}
	if unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
		return true
	}
	return false
}

// IsCanonicalFileName reports whether a single path element follows the
// lowercase-with-underscores convention. Extensions must be lowercase too.
func IsCanonicalFileName(name string) bool {
	if namingExceptions[name] {
		return true
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if ext != strings.ToLower(ext) {
		return false
	}
	return canonicalStemPattern.MatchString(stem)
}

// ExampleFileName returns the resource path of a script's result example.
// The default "JsonResult" payload maps to "<stem>_json_example.json"; other
// named results get their canonical name spliced in.
func ExampleFileName(stem, resultName string) string {
	if resultName == "" || resultName == DefaultResultName {
		return path.Join(ResourcesDir, stem+"_json_example.json")
	}
	return path.Join(ResourcesDir, stem+"_"+Canonical(resultName)+"_example.json")
}
