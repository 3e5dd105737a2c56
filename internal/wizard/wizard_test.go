package wizard

import (
	"bytes"
	"testing"

	"github.com/spboyer/wpbench/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cpu = models.TestDescriptor{
	ID:           "cpu",
	Name:         "CPU",
	ConfigLabel:  "Iterations",
	ConfigUnit:   "iterations",
	DefaultValue: 100000,
	MinValue:     1000,
	MaxValue:     2000000,
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr string
	}{
		{"plain", "5000", 5000, ""},
		{"grouped", "1,500,000", 1500000, ""},
		{"underscores", " 2_000 ", 2000, ""},
		{"minimum", "1000", 1000, ""},
		{"empty", "", 0, "iterations is required"},
		{"not a number", "lots", 0, "not a whole number"},
		{"too small", "999", 0, "999 is outside 1000 to 2000000"},
		{"too large", "2000001", 0, "outside"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.input, cpu)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTestOptions(t *testing.T) {
	exp := models.TestDescriptor{ID: "http_request", Name: "HTTP Request", Experimental: true}

	opts := testOptions([]models.TestDescriptor{cpu, exp}, []string{"http_request"})
	require.Len(t, opts, 2)
	assert.Equal(t, "CPU", opts[0].Key)
	assert.Equal(t, "cpu", opts[0].Value)
	assert.Equal(t, "HTTP Request (experimental)", opts[1].Key)
	assert.Equal(t, "http_request", opts[1].Value)
}

func TestRunWizard_NoTests(t *testing.T) {
	_, err := RunWizard(bytes.NewReader(nil), &bytes.Buffer{}, nil, nil, nil)
	require.ErrorContains(t, err, "no tests available")
}
