// Package forms holds the input policy for each public form: which fields
// exist, their length bounds, and how values are cleaned before they leave
// the client.
package forms

import "fmt"

// Kind identifies a form.
type Kind string

const (
	KindWaitlist Kind = "waitlist"
	KindReview   Kind = "review"
	KindFeedback Kind = "feedback"
)

// Field names used in policies and FieldError.Field.
const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldRating   = "rating"
	FieldComment  = "comment"
	FieldCategory = "category"
	FieldMessage  = "message"
)

// MaxEmailLen is the longest address accepted anywhere (RFC 5321 path limit).
const MaxEmailLen = 254

// FieldRule bounds one text field. Lengths count runes after trimming.
type FieldRule struct {
	Required bool `yaml:"required"`
	Min      int  `yaml:"min"`
	Max      int  `yaml:"max"`
}

// Policy is the rule set for one form kind.
type Policy struct {
	Kind       Kind                 `yaml:"-"`
	Fields     map[string]FieldRule `yaml:"fields"`
	RatingMin  int                  `yaml:"rating_min,omitempty"`
	RatingMax  int                  `yaml:"rating_max,omitempty"`
	Categories []string             `yaml:"categories,omitempty"`
}

// Rule returns the rule for field, and whether the form has that field.
func (p Policy) Rule(field string) (FieldRule, bool) {
	r, ok := p.Fields[field]
	return r, ok
}

// Validate checks that the policy itself is coherent.
func (p Policy) Validate() error {
	for name, r := range p.Fields {
		if r.Min < 0 || r.Max <= 0 || r.Min > r.Max {
			return fmt.Errorf("%s.%s: bounds %d..%d are invalid", p.Kind, name, r.Min, r.Max)
		}
	}
	if p.RatingMin > p.RatingMax {
		return fmt.Errorf("%s: rating bounds %d..%d are invalid", p.Kind, p.RatingMin, p.RatingMax)
	}
	return nil
}

// DefaultPolicies returns a fresh copy of the built-in policy table.
// The three forms deliberately differ: the waitlist only takes an address,
// reviews need a name and a rating, feedback may be anonymous.
func DefaultPolicies() map[Kind]Policy {
	return map[Kind]Policy{
		KindWaitlist: {
			Kind: KindWaitlist,
			Fields: map[string]FieldRule{
				FieldEmail: {Required: true, Min: 3, Max: MaxEmailLen},
			},
		},
		KindReview: {
			Kind: KindReview,
			Fields: map[string]FieldRule{
				FieldName:    {Required: true, Min: 2, Max: 50},
				FieldEmail:   {Required: false, Min: 3, Max: MaxEmailLen},
				FieldComment: {Required: true, Min: 10, Max: 500},
			},
			RatingMin: 1,
			RatingMax: 5,
		},
		KindFeedback: {
			Kind: KindFeedback,
			Fields: map[string]FieldRule{
				FieldName:    {Required: false, Min: 1, Max: 50},
				FieldEmail:   {Required: false, Min: 3, Max: MaxEmailLen},
				FieldMessage: {Required: true, Min: 10, Max: 1000},
			},
			Categories: []string{"bug", "feature", "general"},
		},
	}
}
