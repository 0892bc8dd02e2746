package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contactForm = []FormField{
	{ID: "name", Type: FieldText, Label: "Full Name", Required: true},
	{ID: "email", Type: FieldEmail, Label: "Email", Required: true},
	{ID: "phone", Type: FieldPhone, Label: "Phone"},
	{ID: "topics", Type: FieldCheckbox, Label: "Topics", Options: []string{"a", "b"}},
	{ID: "bio", Type: "textarea", Label: "Bio", Rules: map[string]map[string]interface{}{"length": {"max": float64(5)}}},
	{ID: "go", Type: FieldSubmit, Label: "Send", Required: true},
}

func TestProcessSubmission(t *testing.T) {
	t.Run("normalises values", func(t *testing.T) {
		out, err := ProcessSubmission(contactForm, map[string]interface{}{
			"name":   "Ada",
			"email":  " ada@example.com ",
			"phone":  "+1 (555) 010-9999 ext#",
			"topics": []interface{}{"a", "b"},
			"extra":  "dropped",
		})
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", out["email"])
		assert.Equal(t, "+1 (555) 010-9999 ", out["phone"])
		assert.Equal(t, "a, b", out["topics"])
		assert.NotContains(t, out, "extra")
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := ProcessSubmission(contactForm, map[string]interface{}{"name": ""})
		require.Error(t, err)
		assert.Equal(t, "Please fill in required fields: Full Name, Email", err.Error())
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := ProcessSubmission(contactForm, map[string]interface{}{"name": "Ada", "email": "nope"})
		require.Error(t, err)
		assert.Equal(t, "Please enter a valid email address", err.Error())
	})

	t.Run("rule violation", func(t *testing.T) {
		_, err := ProcessSubmission(contactForm, map[string]interface{}{"name": "Ada", "email": "a@b.co", "bio": "too long"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Bio must be at most 5 characters")
	})

	t.Run("no fields", func(t *testing.T) {
		_, err := ProcessSubmission(nil, map[string]interface{}{})
		assert.EqualError(t, err, "Form has no fields configured")
	})
}

func TestFindField(t *testing.T) {
	assert.Equal(t, "email", FindFieldByType(contactForm, FieldEmail))
	assert.Equal(t, "", FindFieldByType(contactForm, FieldURL))
	assert.Equal(t, "name", FindFieldByLabel(contactForm, "name", "full name"))
}

func TestRegistryValidators(t *testing.T) {
	assert.NoError(t, Validate("url", "https://example.com", nil))
	assert.Error(t, Validate("url", "ftp://example.com", nil))
	assert.Error(t, Validate("phone", "12", nil))
	assert.NoError(t, Validate("range", "42", map[string]interface{}{"min": float64(1), "max": float64(100)}))
	assert.Error(t, Validate("regex", "abc", map[string]interface{}{"pattern": `^\d+$`}))
	assert.Error(t, Validate("missing", "x", nil))
}
