package topic

import "strings"

// Classify reports whether input mentions any of the keywords. Matching is a
// case-insensitive substring test; there is no tokenization or stemming.
func Classify(input string, keywords []string) bool {
	v := strings.ToLower(input)
	for _, k := range keywords {
		k = strings.ToLower(k)
		if k == "" {
			continue
		}
		if strings.Contains(v, k) {
			return true
		}
	}
	return false
}

// Gate is a keyword filter bound to a fixed keyword set.
type Gate struct {
	keywords []string
}

func NewGate(keywords []string) Gate {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(k); k != "" {
			kw = append(kw, k)
		}
	}
	return Gate{keywords: kw}
}

func (g Gate) InTopic(input string) bool {
	return Classify(input, g.keywords)
}
