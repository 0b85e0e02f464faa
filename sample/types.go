package main

import fingerprint "github.com/high-horse/fingerprint"

// Images are base64 strings, optionally data URIs (image/jpeg, image/png, image/gif).

type MatchRequest struct {
	ProbeImage     string `json:"probe_image"`
	CandidateImage string `json:"candidate_image"`
}

type MatchResponse struct {
	Score   int    `json:"score"`
	Match   bool   `json:"is_match"`
	Elapsed string `json:"elapsed,omitempty"`
	Message string `json:"message,omitempty"`
}

type ImageRequest struct {
	Image string `json:"image"`
}

type ProcessResponse struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Frequency float64 `json:"frequency"`
	Keypoints int     `json:"keypoints"`
	Enhanced  string  `json:"enhanced"`
	Overlay   string  `json:"overlay"`
	Elapsed   string  `json:"elapsed,omitempty"`
}

type EnrollRequest struct {
	Image       string `json:"image"`
	Name        string `json:"name"`
	AccessLevel string `json:"access_level"`
}

type EnrollResponse struct {
	User *fingerprint.User `json:"user"`
	Role string            `json:"role"`
}

type IdentifyResponse struct {
	Matched bool              `json:"matched"`
	Score   int               `json:"score"`
	User    *fingerprint.User `json:"user,omitempty"`
	Role    string            `json:"role,omitempty"`
	Message string            `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
