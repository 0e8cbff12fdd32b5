package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContactKey(t *testing.T) {
	k := ContactKey("https://www.LaCabrera.com.ar/")

	assert.True(t, strings.HasPrefix(k, contactPrefix))
	assert.Len(t, strings.TrimPrefix(k, contactPrefix), 64)
	assert.Equal(t, k, ContactKey("http://lacabrera.com.ar"))
	assert.NotEqual(t, k, ContactKey("https://lacabrera.com.ar/menu"))
}

func TestSearchKey(t *testing.T) {
	a := SearchKey("dataforseo", []string{"bar", "pub"}, 4.0, 500, "-34.6037,-58.3816,20")
	b := SearchKey("dataforseo", []string{"pub", "bar"}, 4.0, 500, "-34.6037,-58.3816,20")

	assert.True(t, strings.HasPrefix(a, searchPrefix))
	assert.Equal(t, a, b, "category order is irrelevant")
	assert.NotEqual(t, a, SearchKey("dataforseo", []string{"bar", "pub"}, 4.5, 500, "-34.6037,-58.3816,20"))
	assert.NotEqual(t, a, SearchKey("dataforseo", []string{"bar", "pub"}, 4.0, 100, "-34.6037,-58.3816,20"))
}
