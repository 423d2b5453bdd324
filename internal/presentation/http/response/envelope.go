// Package response renders every HTTP reply in one JSON envelope.
package response

// Envelope is the body of every response.
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *Failure       `json:"error,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Failure describes why a request was refused. Reason is the stable code clients branch on.
type Failure struct {
	Kind    string         `json:"kind"`
	Reason  string         `json:"reason"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
