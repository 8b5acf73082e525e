package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
)

const maxRequestBytes = 1 << 20

// bindLooseJSON decodes a JSON object into target, turning top-level numbers
// into strings first. Legacy forms post amounts and rates either way.
func bindLooseJSON(c *gin.Context, target any) error {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("empty body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return err
	}

	for key, value := range fields {
		if n, ok := value.(json.Number); ok {
			fields[key] = n.String()
		}
	}

	normalized, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, target)
}
