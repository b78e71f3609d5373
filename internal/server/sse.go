package server

import (
	"encoding/json"
	"fmt"

	"github.com/labstack/echo/v4"
)

// writeSSE writes one server-sent event carrying the JSON encoding of
// payload and flushes it to the client.
func writeSSE(resp *echo.Response, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(resp, "data: %s\n\n", body); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
