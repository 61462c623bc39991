package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
)

// Resource keys a client may wrap a request body in
const (
	keyObligation = "obrigacao"
	keyEntry      = "lancamento"
	keyStatement  = "extrato"
)

// maxJSONBody caps JSON payloads; statement imports are the largest
const maxJSONBody = 5 << 20

// BindNestedOrFlat decodes the JSON body into obj. The payload may come wrapped in its
// resource key ({"obrigacao": {...}}, {"lancamento": {...}}, {"extrato": {...}}) or flat.
// The body is restored so it can be read again.
func BindNestedOrFlat(c *gin.Context, key string, obj any) error {
	var body []byte
	if c.Request.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(c.Request.Body, maxJSONBody+1))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if len(body) > maxJSONBody {
			return fmt.Errorf("corpo excede %d bytes", maxJSONBody)
		}
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	var wrapped map[string]json.RawMessage
	if json.Unmarshal(body, &wrapped) == nil {
		if inner, ok := wrapped[key]; ok {
			return json.Unmarshal(inner, obj)
		}
	}
	return json.Unmarshal(body, obj)
}
