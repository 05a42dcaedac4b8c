package forms

import (
	"fmt"
	"slices"
	"unicode/utf8"
)

// FieldError represents a single field's validation error.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

// Review is the raw review form input.
type Review struct {
	Name    string
	Email   string
	Rating  int
	Comment string
}

// Feedback is the raw feedback form input.
type Feedback struct {
	Name     string
	Email    string
	Category string
	Message  string
}

// checkText applies rule to an already cleaned value.
func checkText(field, value string, rule FieldRule) []FieldError {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		if rule.Required {
			return []FieldError{{field, "required"}}
		}
		return nil
	}
	if n < rule.Min {
		return []FieldError{{field, fmt.Sprintf("min length %d", rule.Min)}}
	}
	if n > rule.Max {
		return []FieldError{{field, fmt.Sprintf("max length %d", rule.Max)}}
	}
	return nil
}

func checkEmail(value string, rule FieldRule) []FieldError {
	if errs := checkText(FieldEmail, value, rule); len(errs) > 0 {
		return errs
	}
	if value != "" && !ValidEmail(value) {
		return []FieldError{{FieldEmail, "must be a valid email address"}}
	}
	return nil
}

// ValidateWaitlist checks the waitlist address against p.
func ValidateWaitlist(p Policy, email string) []FieldError {
	rule, _ := p.Rule(FieldEmail)
	rule.Required = true
	return checkEmail(Clean(email), rule)
}

// ValidateReview checks every review field against p.
func ValidateReview(p Policy, r Review) []FieldError {
	var errs []FieldError
	if rule, ok := p.Rule(FieldName); ok {
		errs = append(errs, checkText(FieldName, Clean(r.Name), rule)...)
	}
	if rule, ok := p.Rule(FieldEmail); ok {
		errs = append(errs, checkEmail(Clean(r.Email), rule)...)
	}
	if r.Rating < p.RatingMin || r.Rating > p.RatingMax {
		errs = append(errs, FieldError{FieldRating, fmt.Sprintf("must be between %d and %d", p.RatingMin, p.RatingMax)})
	}
	if rule, ok := p.Rule(FieldComment); ok {
		errs = append(errs, checkText(FieldComment, Clean(r.Comment), rule)...)
	}
	return errs
}

// ValidateFeedback checks every feedback field against p.
func ValidateFeedback(p Policy, f Feedback) []FieldError {
	var errs []FieldError
	if rule, ok := p.Rule(FieldName); ok {
		errs = append(errs, checkText(FieldName, Clean(f.Name), rule)...)
	}
	if rule, ok := p.Rule(FieldEmail); ok {
		errs = append(errs, checkEmail(Clean(f.Email), rule)...)
	}
	if len(p.Categories) > 0 && !slices.Contains(p.Categories, Clean(f.Category)) {
		errs = append(errs, FieldError{FieldCategory, fmt.Sprintf("must be one of %v", p.Categories)})
	}
	if rule, ok := p.Rule(FieldMessage); ok {
		errs = append(errs, checkText(FieldMessage, Clean(f.Message), rule)...)
	}
	return errs
}
