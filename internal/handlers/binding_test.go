package handlers

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type bindTarget struct {
	Description string `json:"description"`
	Number      int    `json:"number"`
}

func TestBindNestedOrFlat(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		key         string
		body        string
		expected    bindTarget
		expectError bool
	}{
		{
			name:     "nested",
			key:      keyEntry,
			body:     `{"lancamento": {"description": "Aluguel", "number": 3}}`,
			expected: bindTarget{Description: "Aluguel", Number: 3},
		},
		{
			name:     "flat",
			key:      keyEntry,
			body:     `{"description": "Honorários", "number": 1}`,
			expected: bindTarget{Description: "Honorários", Number: 1},
		},
		{
			name:     "other resource key falls back to flat",
			key:      keyEntry,
			body:     `{"obrigacao": "x", "description": "Custas", "number": 2}`,
			expected: bindTarget{Description: "Custas", Number: 2},
		},
		{
			name:        "invalid json",
			key:         keyEntry,
			body:        `{"description": "Custas", "number": "dois"}`,
			expectError: true,
		},
		{
			name:        "nested with invalid content",
			key:         keyEntry,
			body:        `{"lancamento": {"number": "dois"}}`,
			expectError: true,
		},
		{
			name:        "nested key holding a string",
			key:         keyEntry,
			body:        `{"lancamento": "texto"}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("POST", "/", bytes.NewBufferString(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var result bindTarget
			err := BindNestedOrFlat(c, tt.key, &result)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestBindNestedOrFlat_RejectsOversizedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"extrato": {"description": "` + strings.Repeat("a", maxJSONBody) + `"}}`
	c.Request = httptest.NewRequest("POST", "/", bytes.NewBufferString(body))

	var result bindTarget
	err := BindNestedOrFlat(c, keyStatement, &result)

	assert.Error(t, err)
	assert.Empty(t, result.Description)
}

func TestBindNestedOrFlat_BodyCanBeReadAgain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"obrigacao": {"number": 4}}`))

	var first bindTarget
	assert.NoError(t, BindNestedOrFlat(c, keyObligation, &first))

	var second bindTarget
	assert.NoError(t, BindNestedOrFlat(c, keyObligation, &second))
	assert.Equal(t, 4, second.Number)
}
