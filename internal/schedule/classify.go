package schedule

import "strings"

// Rule tags an event whose description contains Phrase with Color.
type Rule struct {
	Phrase string
	Color  string
}

// Classifier picks a display color from free-text descriptions. Rules
// are tried in order and the first match wins.
type Classifier struct {
	rules []Rule
}

func NewClassifier(rules []Rule) *Classifier {
	c := &Classifier{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		phrase := strings.ToLower(strings.TrimSpace(r.Phrase))
		if phrase == "" || r.Color == "" {
			continue
		}
		c.rules = append(c.rules, Rule{Phrase: phrase, Color: r.Color})
	}
	return c
}

// Color returns the color of the first rule whose phrase occurs in
// description (case-insensitive), or fallback.
func (c *Classifier) Color(description, fallback string) string {
	if c == nil || description == "" {
		return fallback
	}
	text := strings.ToLower(description)
	for _, r := range c.rules {
		if strings.Contains(text, r.Phrase) {
			return r.Color
		}
	}
	return fallback
}
