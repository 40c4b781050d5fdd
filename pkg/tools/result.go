package tools

import (
	"encoding/json"
	"fmt"
)

// toolResponse is the error wrapper sent back to the model when a call fails.
type toolResponse struct {
	OK   bool   `json:"ok"`
	Tool string `json:"tool,omitempty"`
	Err  string `json:"error,omitempty"`
}

// ErrorResult encodes a failed call as tool-result text the model can read.
func ErrorResult(toolName string, err error) string {
	resp := toolResponse{OK: err == nil, Tool: toolName}
	if err != nil {
		resp.Err = err.Error()
	}
	payload, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		return fmt.Sprintf(`{"ok":false,"error":%q}`, resp.Err)
	}
	return string(payload)
}
