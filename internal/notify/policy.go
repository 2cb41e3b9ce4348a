package notify

import (
	"fmt"
	"regexp"
)

// Rule rewrites messages matching Pattern with Replace, which may use
// regexp expansion such as $1.
type Rule struct {
	Pattern string `mapstructure:"pattern"`
	Replace string `mapstructure:"replace"`
}

// SuppressMatching returns a Filter that drops any message matching one of
// patterns, on every severity.
func SuppressMatching(patterns []string) (Filter, error) {
	res, err := compileAll(patterns)
	if err != nil {
		return nil, err
	}
	return func(message string, _ Severity) bool {
		for _, re := range res {
			if re.MatchString(message) {
				return false
			}
		}
		return true
	}, nil
}

// RewriteMatching returns a Transformer applying rules in order.
func RewriteMatching(rules []Rule) (Transformer, error) {
	type compiled struct {
		re      *regexp.Regexp
		replace string
	}
	cs := make([]compiled, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rewrite pattern %q: %w", r.Pattern, err)
		}
		cs = append(cs, compiled{re: re, replace: r.Replace})
	}
	return func(message string, _ Severity) string {
		for _, c := range cs {
			message = c.re.ReplaceAllString(message, c.replace)
		}
		return message
	}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("suppress pattern %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}
