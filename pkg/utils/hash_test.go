package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashSetIgnoresOrderAndCase(t *testing.T) {
	a := HashSet([]string{"CS2500", "math1341", "CS2500"})
	b := HashSet([]string{" MATH1341", "cs2500"})

	assert.Equal(t, a, b)
	assert.Len(t, a, 12)
	assert.NotEqual(t, a, HashSet([]string{"CS2500"}))
	assert.Equal(t, HashSet(nil), HashSet([]string{"", " "}))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "business-intelligence", Slug("Business Intelligence"))
	assert.Equal(t, "data-science-ai", Slug("  Data Science / AI!! "))
	assert.Equal(t, "", Slug("---"))
}
