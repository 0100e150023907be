package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalizeAnswersConvertsArrays(t *testing.T) {
	got := normalizeAnswers(map[string]any{
		"colours": primitive.A{"red", "blue"},
		"name":    "Ada",
		"agree":   true,
		"age":     float64(30),
	})

	assert.Equal(t, []string{"red", "blue"}, got["colours"])
	assert.Equal(t, "Ada", got["name"])
	assert.Equal(t, true, got["agree"])
	assert.Equal(t, float64(30), got["age"])
}
