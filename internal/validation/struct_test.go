package validation

import (
	"testing"

	"socialnet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profileInput struct {
	Bio          string `validate:"max=500"`
	Website      string `validate:"omitempty,url"`
	MobileNumber string `validate:"omitempty,mobile"`
}

func TestStruct(t *testing.T) {
	t.Parallel()

	require.NoError(t, Struct(profileInput{Website: "https://example.com", MobileNumber: "9876543210"}))

	err := Struct(profileInput{Website: "not a url", MobileNumber: "1234567890"})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.Contains(t, err.Error(), "website must be a valid URL")
	assert.Contains(t, err.Error(), "mobile_number must be a 10 digit number")
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Plain", "hello", "hello"},
		{"Trimmed", "  hi  ", "hi"},
		{"Script Stripped", "<script>alert(1)</script>ok", "ok"},
		{"Tags Stripped", "<b>bold</b> & more", "bold & more"},
		{"Only Markup", "<p></p>", ""},
		{"Escaped Script", "&lt;script&gt;alert(1)&lt;/script&gt;ok", "ok"},
		{"Escaped Tags", "&lt;b&gt;bold&lt;/b&gt;", "bold"},
		{"Double Escaped", "&amp;lt;img src=x onerror=alert(1)&amp;gt;hi", "hi"},
		{"Literal Comparison", "a < b && c > d", "a < b && c > d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeText(tt.in))
		})
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "one two", PlainText("<p>one</p><p>two</p>"))
}
