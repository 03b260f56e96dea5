package functions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"google.golang.org/genai"
)

// Weather is the payload of get_weather.
type Weather struct {
	Location    string `json:"location"`
	Condition   string `json:"condition"`
	Temperature string `json:"temperature"`
	Humidity    string `json:"humidity"`
	Wind        string `json:"wind"`
}

// WeatherProvider looks up current conditions for a location.
type WeatherProvider interface {
	Weather(ctx context.Context, location string) (Weather, error)
}

var conditions = []string{"sunny", "cloudy", "rainy", "snowy"}

// MockWeather synthesizes conditions. It never fails and is the fallback
// whenever a live provider is unavailable.
type MockWeather struct {
	Rand RandomSource
}

func (m MockWeather) Weather(_ context.Context, location string) (Weather, error) {
	return Weather{
		Location:    location,
		Condition:   conditions[m.Rand.Intn(len(conditions))],
		Temperature: fmt.Sprintf("%d°C", m.Rand.Intn(30)+10),
		Humidity:    fmt.Sprintf("%d%%", m.Rand.Intn(100)),
		Wind:        fmt.Sprintf("%d km/h", m.Rand.Intn(20)),
	}, nil
}

const weatherPrompt = `What is the current weather in %s? Use Google Search for live data.
Reply with only a JSON object with the string fields "condition" (one or two words, lowercase),
"temperature" (like "18°C"), "humidity" (like "60%%") and "wind" (like "12 km/h").`

// GeminiWeather asks Gemini, grounded with Google Search, for live conditions.
type GeminiWeather struct {
	client *genai.Client
	model  string
}

// NewGeminiWeather creates a provider backed by the Gemini API.
func NewGeminiWeather(ctx context.Context, apiKey, model string) (*GeminiWeather, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiWeather{client: client, model: model}, nil
}

func (g *GeminiWeather) Weather(ctx context.Context, location string) (Weather, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(fmt.Sprintf(weatherPrompt, location)),
		&genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0),
			Tools:       []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		},
	)
	if err != nil {
		return Weather{}, fmt.Errorf("weather lookup for %q: %w", location, err)
	}

	w, err := parseWeatherReply(resp.Text())
	if err != nil {
		return Weather{}, fmt.Errorf("weather lookup for %q: %w", location, err)
	}
	w.Location = location
	return w, nil
}

// parseWeatherReply extracts the JSON object from a model reply, tolerating
// markdown fences and surrounding prose.
func parseWeatherReply(text string) (Weather, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Weather{}, errors.New("no JSON object in reply")
	}

	var w Weather
	if err := sonic.UnmarshalString(text[start:end+1], &w); err != nil {
		return Weather{}, fmt.Errorf("decode reply: %w", err)
	}
	if w.Condition == "" || w.Temperature == "" {
		return Weather{}, errors.New("incomplete weather reply")
	}
	return w, nil
}
