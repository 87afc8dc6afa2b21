package xclient

// sessionRequest is the login submission. Identifier is the username or,
// on a retried submission, the phone number.
type sessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// sessionResponse is returned for a successful or challenged login.
type sessionResponse struct {
	Token     string `json:"token"`
	Challenge string `json:"challenge,omitempty"`
}

// verifyResponse reports whether a pending step-up verification has been
// completed out of band.
type verifyResponse struct {
	Cleared bool `json:"cleared"`
}

type userResponse struct {
	Handle    string `json:"handle"`
	Suspended bool   `json:"suspended"`
}

// itemsResponse lists an account's recent items, newest first.
type itemsResponse struct {
	Items []apiItem `json:"items"`
}

type apiItem struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Text string `json:"text"`
}

type repostRequest struct {
	Annotation string `json:"annotation"`
}

type errorResponse struct {
	Error string `json:"error"`
}
