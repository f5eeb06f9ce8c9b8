package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestCompleteSSLModes(t *testing.T) {
	tests := []struct {
		toComplete string
		want       []string
	}{
		{"", sslModes},
		{"verify", []string{"verify-ca", "verify-full"}},
		{"req", []string{"require"}},
		{"x", nil},
	}

	for _, tt := range tests {
		t.Run(tt.toComplete, func(t *testing.T) {
			got, directive := completeSSLModes(nil, nil, tt.toComplete)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
		})
	}
}

func TestCompleteFormats(t *testing.T) {
	got, directive := completeFormats(nil, nil, "g")
	assert.Equal(t, []string{"geojson", "gpkg"}, got)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)

	got, _ = completeFormats(nil, nil, "")
	assert.Equal(t, inputFormats, got)
}
