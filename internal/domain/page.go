package domain

// Page is a fetched document handed to the content extractor.
type Page struct {
	URL  string
	HTML string
}

// CompletionRequest is one call to a text-completion service.
type CompletionRequest struct {
	System      string
	User        string
	Model       string
	MaxTokens   int
	Temperature float32
}
