package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/menta2k/face-cropper/pkg/client"
	"github.com/menta2k/face-cropper/pkg/types"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-flash"

// Client talks to the Gemini API
type Client struct {
	client *genai.Client
	model  string
}

var _ client.VisionClient = (*Client)(nil)

// Config holds the Gemini connection settings. An empty APIKey falls back to
// the GEMINI_API_KEY environment variable.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	c, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{client: c, model: cfg.Model}, nil
}

// Ping fetches the configured model's metadata
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.model, nil); err != nil {
		return fmt.Errorf("gemini model %s unavailable: %w", c.model, err)
	}
	return nil
}

func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return c.generate(ctx, model, prompt, imgB64, nil)
}

// LocateFaces requests structured JSON output matching FaceAnalysis
func (c *Client) LocateFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceAnalysis, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
		ResponseSchema:   faceAnalysisSchema(),
	}

	text, err := c.generate(ctx, model, prompt, imgB64, config)
	if err != nil {
		return nil, err
	}
	return client.ParseFaceAnalysis(text)
}

func (c *Client) generate(ctx context.Context, model, prompt, imgB64 string, config *genai.GenerateContentConfig) (string, error) {
	if model == "" {
		model = c.model
	}

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
	}
	if imgB64 != "" {
		imgData, err := base64.StdEncoding.DecodeString(imgB64)
		if err != nil {
			return "", fmt.Errorf("failed to decode base64 image: %w", err)
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{Data: imgData, MIMEType: "image/jpeg"},
		})
	}

	result, err := c.client.Models.GenerateContent(ctx, model, []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from Gemini")
	}
	return result.Text(), nil
}

func faceAnalysisSchema() *genai.Schema {
	number := &genai.Schema{Type: genai.TypeNumber}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"faces": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"label":      {Type: genai.TypeString},
						"confidence": number,
						"box": {
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"x": number,
								"y": number,
								"w": number,
								"h": number,
							},
							Required: []string{"x", "y", "w", "h"},
						},
					},
					Required: []string{"confidence", "box"},
				},
			},
			"description": {Type: genai.TypeString},
		},
		Required:         []string{"faces"},
		PropertyOrdering: []string{"faces", "description"},
	}
}
