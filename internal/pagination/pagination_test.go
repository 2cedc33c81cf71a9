package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{"defaults", Page{}, Page{Limit: DefaultLimit}},
		{"negative", Page{Limit: -5, Offset: -1}, Page{Limit: DefaultLimit}},
		{"clamped", Page{Limit: 1000, Offset: 40}, Page{Limit: MaxLimit, Offset: 40}},
		{"kept", Page{Limit: 10, Offset: 10}, Page{Limit: 10, Offset: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestPage_HasMore(t *testing.T) {
	page := Page{Limit: 10, Offset: 10}

	assert.True(t, page.HasMore(21))
	assert.False(t, page.HasMore(20))
	assert.False(t, page.HasMore(5))
}
