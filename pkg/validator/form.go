package validator

import (
	"fmt"
	"regexp"
	"strings"
)

// Field types with special handling
const (
	FieldText     = "text"
	FieldEmail    = "email"
	FieldPhone    = "phone"
	FieldURL      = "url"
	FieldNumber   = "number"
	FieldCheckbox = "checkbox"
	FieldSubmit   = "submit"
)

var phoneStrip = regexp.MustCompile(`[^\d+()\-\s]`)

// FormField is one configured input of a form.
// Rules maps validator names to their config, e.g. {"length": {"max": 200}}.
type FormField struct {
	ID          string                            `json:"id"`
	Type        string                            `json:"type"`
	Label       string                            `json:"label"`
	Required    bool                              `json:"required,omitempty"`
	Placeholder string                            `json:"placeholder,omitempty"`
	Options     []string                          `json:"options,omitempty"`
	Rules       map[string]map[string]interface{} `json:"rules,omitempty"`
}

// SubmissionError is a caller-facing rejection of a submission
type SubmissionError struct {
	Message string
}

func (e *SubmissionError) Error() string { return e.Message }

// ProcessSubmission checks required fields, validates typed values and
// normalises them. Unknown keys in data are dropped.
func ProcessSubmission(fields []FormField, data map[string]interface{}) (map[string]interface{}, error) {
	if len(fields) == 0 {
		return nil, &SubmissionError{Message: "Form has no fields configured"}
	}

	var missing []string
	for _, f := range fields {
		if f.Required && f.Type != FieldSubmit && isEmpty(data[f.ID]) {
			missing = append(missing, f.Label)
		}
	}
	if len(missing) > 0 {
		return nil, &SubmissionError{Message: "Please fill in required fields: " + strings.Join(missing, ", ")}
	}

	reg := GetRegistry()
	out := make(map[string]interface{})
	for _, f := range fields {
		if f.Type == FieldSubmit {
			continue
		}
		value, present := data[f.ID]
		if !present || isEmpty(value) {
			continue
		}

		switch f.Type {
		case FieldCheckbox:
			if list, ok := value.([]interface{}); ok {
				parts := make([]string, 0, len(list))
				for _, item := range list {
					parts = append(parts, fmt.Sprint(item))
				}
				value = strings.Join(parts, ", ")
			}
		case FieldEmail:
			s := strings.TrimSpace(fmt.Sprint(value))
			if err := reg.Validate("email", s, nil); err != nil {
				return nil, &SubmissionError{Message: err.Error()}
			}
			value = s
		case FieldPhone:
			value = phoneStrip.ReplaceAllString(fmt.Sprint(value), "")
		case FieldURL:
			if err := reg.Validate("url", fmt.Sprint(value), nil); err != nil {
				return nil, &SubmissionError{Message: err.Error()}
			}
		}

		for name, cfg := range f.Rules {
			if err := reg.Validate(name, value, cfg); err != nil {
				return nil, &SubmissionError{Message: fmt.Sprintf("%s %s", f.Label, err.Error())}
			}
		}
		out[f.ID] = value
	}
	return out, nil
}

// FindFieldByType returns the id of the first field of type t
func FindFieldByType(fields []FormField, t string) string {
	for _, f := range fields {
		if f.Type == t {
			return f.ID
		}
	}
	return ""
}

// FindFieldByLabel returns the id of the first field whose label contains any of labels
func FindFieldByLabel(fields []FormField, labels ...string) string {
	for _, f := range fields {
		lower := strings.ToLower(f.Label)
		for _, l := range labels {
			if strings.Contains(lower, strings.ToLower(l)) {
				return f.ID
			}
		}
	}
	return ""
}

func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case bool:
		return !val
	}
	return false
}
