package htmlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "html paragraphs", in: "<p>**Winter** is busiest.</p>\n\n<p>Two anomalies.</p>", want: "Winter is busiest. Two anomalies."},
		{name: "whitespace", in: "  plain\n text ", want: "plain text"},
		{name: "entities", in: "Flow &amp; power", want: "Flow & power"},
		{name: "heading", in: "## Summary\nAll quiet.", want: "Summary All quiet."},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToText(tt.in))
		})
	}
}
