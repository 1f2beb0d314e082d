package domain

import "time"

// ResponseSample is the raw material for classification.
type ResponseSample struct {
	StatusCode int
	Body       string
}

// Credential is the login pair for the target site.
type Credential struct {
	Identifier string
	Secret     string
}

// Empty reports whether either half of the pair is missing.
func (c Credential) Empty() bool {
	return c.Identifier == "" || c.Secret == ""
}

func (c Credential) String() string {
	return c.Identifier + ":******"
}

// Endpoint is a candidate sign-in endpoint, tried in priority order.
type Endpoint struct {
	Name    string        `yaml:"name"`
	Method  string        `yaml:"method"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}
