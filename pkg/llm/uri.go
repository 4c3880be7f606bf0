package llm

import (
	"fmt"
	"regexp"
	"strings"
)

// ModelType says what a backend URI is used for.
type ModelType string

const (
	ModelTypeLLM       ModelType = "LLM"
	ModelTypeEmbedding ModelType = "EMBEDDING"
)

// APIType selects the wire protocol of a backend.
type APIType string

const (
	APITypeOpenAI    APIType = "OPENAI"
	APITypeOllama    APIType = "OLLAMA"
	APITypeAnthropic APIType = "ANTHROPIC"
)

// AIURI is a parsed backend URI of the form
//
//	model_type+api_type://model[:tag]@[api_key]@api_uri
//
// for example llm+openai://gpt-4o@sk-xxx@https://api.openai.com/v1 or
// embedding+ollama://bge-m3@http://localhost:11434.
type AIURI struct {
	ModelType ModelType
	APIType   APIType
	// Model includes the tag when one is set ("qwen2.5:7b").
	Model  string
	APIKey string
	// Endpoint is the base URL of the backend API.
	Endpoint string
}

var aiURIPattern = regexp.MustCompile(
	`^(?P<model_type>[^+]+)\+` +
		`(?P<api_type>[^:/]+)://` +
		`(?P<model>[^:@]+)` +
		`(?::(?P<tag>[^@]+))?` +
		`(?:@(?P<api_key>[^@]*))?` +
		`@(?P<api_uri>(?:[a-zA-Z][a-zA-Z0-9+.-]*://)?[^@\s]+)$`)

const aiURIFormat = "model_type+api_type://model[:tag]@[api_key]@<scheme://host:port>"

// ParseAIURI parses a backend URI. Ollama models without a tag get "latest".
func ParseAIURI(raw string) (*AIURI, error) {
	m := aiURIPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil, fmt.Errorf("invalid AI URI, expected %s", aiURIFormat)
	}
	group := func(name string) string {
		return m[aiURIPattern.SubexpIndex(name)]
	}

	u := &AIURI{
		ModelType: ModelType(strings.ToUpper(group("model_type"))),
		APIType:   APIType(strings.ToUpper(group("api_type"))),
		APIKey:    group("api_key"),
		Endpoint:  strings.TrimSuffix(group("api_uri"), "/"),
	}

	switch u.ModelType {
	case ModelTypeLLM, ModelTypeEmbedding:
	default:
		return nil, fmt.Errorf("unknown model type %q in AI URI", group("model_type"))
	}
	switch u.APIType {
	case APITypeOpenAI, APITypeOllama, APITypeAnthropic:
	default:
		return nil, fmt.Errorf("unknown api type %q in AI URI", group("api_type"))
	}
	if u.ModelType == ModelTypeEmbedding && u.APIType == APITypeAnthropic {
		return nil, fmt.Errorf("anthropic does not serve embedding models")
	}

	tag := group("tag")
	if tag == "" && u.APIType == APITypeOllama {
		tag = "latest"
	}
	u.Model = group("model")
	if tag != "" {
		u.Model += ":" + tag
	}

	if !strings.Contains(u.Endpoint, "://") {
		u.Endpoint = "http://" + u.Endpoint
	}
	return u, nil
}

// OpenAIBaseURL returns the OpenAI-compatible base URL. Ollama serves that
// API under /v1.
func (u *AIURI) OpenAIBaseURL() string {
	if u.APIType == APITypeOllama && !strings.HasSuffix(u.Endpoint, "/v1") {
		return u.Endpoint + "/v1"
	}
	return u.Endpoint
}

// String renders the URI with the API key redacted.
func (u *AIURI) String() string {
	key := ""
	if u.APIKey != "" {
		key = "[REDACTED]@"
	}
	return fmt.Sprintf("%s+%s://%s@%s%s",
		strings.ToLower(string(u.ModelType)), strings.ToLower(string(u.APIType)), u.Model, key, u.Endpoint)
}
