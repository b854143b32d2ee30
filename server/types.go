package server

// CaptureResponse is the body of GET /capture.
type CaptureResponse struct {
	Status    string `json:"status"`
	Template  string `json:"template,omitempty"`
	VoterCode string `json:"voterCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

type MatchRequest struct {
	Probe   string `json:"probe"`
	Gallery string `json:"gallery"`
}

type MatchResponse struct {
	Score   float64 `json:"score"`
	Match   bool    `json:"is_match"`
	Elapsed string  `json:"elapsed,omitempty"`
	Error   string  `json:"error,omitempty"`
}

type EncodeRequest struct {
	// Image is base64 image data, optionally as a data: URI.
	Image string `json:"image"`
}

type EncodeResponse struct {
	Template string `json:"template,omitempty"`
	Length   int    `json:"length,omitempty"`
	Error    string `json:"error,omitempty"`
}
