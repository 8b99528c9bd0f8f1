package assistant

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/genai"

	"github.com/tbourn/nemo-backend/internal/config"
)

// Gemini is the subset of the genai client used by the assistant.
type Gemini interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var (
	geminiReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nemo",
			Subsystem: "gemini",
			Name:      "requests_total",
			Help:      "Total number of Gemini generate calls.",
		},
		[]string{"model", "outcome"},
	)
	geminiLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nemo",
			Subsystem: "gemini",
			Name:      "request_duration_seconds",
			Help:      "Duration of Gemini generate calls in seconds.",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(geminiReqs, geminiLat)
}

// GeminiClient calls the Gemini API or Vertex AI.
type GeminiClient struct {
	client *genai.Client
}

// NewGemini builds a client. An API key selects the Gemini API; otherwise
// the project and location select Vertex AI.
func NewGemini(ctx context.Context, cfg config.GeminiConfig) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	}
	if cfg.APIKey != "" {
		cc = &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}
	return &GeminiClient{client: client}, nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	geminiLat.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		geminiReqs.WithLabelValues(model, "error").Inc()
		return nil, goerr.Wrap(err, "failed to generate content", goerr.V("model", model))
	}
	geminiReqs.WithLabelValues(model, "ok").Inc()
	return resp, nil
}

// inlineData returns the first inline blob of the first candidate.
func inlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData
		}
	}
	return nil
}

// responseText is resp.Text() tolerating a nil response.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	return resp.Text()
}
