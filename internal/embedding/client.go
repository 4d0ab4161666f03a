package embedding

import (
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps the OpenAI client shared by embedding and answer generation.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI client. An empty apiKey falls back to OPENAI_API_KEY;
// it is an error if neither is set.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client for use in other packages (e.g., answer generation).
func (c *Client) Client() *openai.Client {
	return c.client
}
