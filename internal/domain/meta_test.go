package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseAuthor(t *testing.T) {
	tests := []struct {
		in    string
		name  string
		email string
	}{
		{"Daniel Clarke <danieljbclarkemssm@gmail.com>", "Daniel Clarke", "danieljbclarkemssm@gmail.com"},
		{"Jane Doe", "Jane Doe", ""},
		{"  Padded Name <p@example.org>  ", "Padded Name", "p@example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseAuthor(tt.in)
			assert.Equal(t, tt.name, got.Name)
			assert.Equal(t, tt.email, got.Email)
		})
	}
}

func TestMeta_Tags(t *testing.T) {
	m := Meta{Tags: map[string]map[string]float64{
		"Type":        {"Gene": 1},
		"Cardinality": {"Term": 1},
	}}

	assert.Equal(t, []string{"Cardinality", "Type"}, m.TagCategories())
	assert.True(t, m.HasTag("Type", "Gene"))
	assert.True(t, m.HasTag("Type", ""))
	assert.False(t, m.HasTag("Type", "Drug"))
	assert.False(t, m.HasTag("Source", ""))
}

func TestBCOTime(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.FixedZone("X", 3600))
	assert.Equal(t, "2024-03-01T11:30:45.123000", BCOTime(ts))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "process:abc", ProcessKey("abc"))
	assert.Equal(t, "fpl:abc", ChainKey("abc"))
	assert.Equal(t, "bco:abc", BCOKey("abc"))
	assert.Equal(t, "abc@v1", ValueCacheKey("abc", "v1"))
	assert.Equal(t, "value:abc@v1", ValueKey(ValueCacheKey("abc", "v1")))
}
