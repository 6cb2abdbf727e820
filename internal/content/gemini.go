package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-2.5-flash"

const systemPrompt = `You are a warm, concise astrologer writing for a chat app.
Write at most 120 words of plain text, no markdown headings.
Answer in the language whose ISO code is given. Never ask questions back.`

// GeminiGenerator writes readings with a Gemini model.
type GeminiGenerator struct {
	client    *genai.Client
	modelName string
	logger    *zap.Logger
}

// NewGeminiGenerator connects to Gemini. An empty apiKey returns nil and no
// error; the caller falls back to another generator.
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string, logger *zap.Logger) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &GeminiGenerator{client: client, modelName: modelName, logger: logger}, nil
}

// Close releases the client.
func (g *GeminiGenerator) Close() {
	if g == nil || g.client == nil {
		return
	}
	if err := g.client.Close(); err != nil {
		g.logger.Warn("close gemini client", zap.Error(err))
	}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (Rendered, error) {
	// GenerativeModel carries mutable settings, so each call gets its own.
	model := g.client.GenerativeModel(g.modelName)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt(req)))
	if err != nil {
		return Rendered{}, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return Rendered{}, fmt.Errorf("empty response from model")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return Rendered{}, fmt.Errorf("model returned no text")
	}
	return Rendered{Text: text}, nil
}

func prompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reading: %s\nLanguage: %s\nToday: %s\n", strings.ReplaceAll(req.Kind, "_", " "), req.Language, req.Now.Format("2006-01-02"))
	p := req.Profile
	if p.BirthDate != nil {
		d := *p.BirthDate
		fmt.Fprintf(&b, "Birth date: %s-%s-%s\n", d[4:], d[2:4], d[:2])
		if day, month, _, ok := parseBirthDate(d); ok {
			fmt.Fprintf(&b, "Sun sign: %s\n", SunSign(day, month))
		}
	}
	if p.BirthTime != nil {
		t := *p.BirthTime
		fmt.Fprintf(&b, "Birth time: %s:%s\n", t[:2], t[2:])
	} else {
		b.WriteString("Birth time: unknown\n")
	}
	if p.BirthPlace != nil {
		fmt.Fprintf(&b, "Birth place: %s (%.4f, %.4f, %s)\n", p.BirthPlace.Name, p.BirthPlace.Latitude, p.BirthPlace.Longitude, p.BirthPlace.Timezone)
	}
	return b.String()
}
