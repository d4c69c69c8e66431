// Package tools provides the built-in tools bound to the chat agent:
// weather lookup, cryptocurrency prices, and uploaded-image description.
package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/hetarolabs/samantha/ai"
)

const defaultOpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

// WeatherReport is the tool result fed back to the model.
type WeatherReport struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	Conditions  string  `json:"conditions"`
	Unit        string  `json:"unit"`
}

// WeatherTool looks up current conditions via the OpenWeather API.
type WeatherTool struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ ai.Tool = (*WeatherTool)(nil)

// WeatherToolOption customizes a WeatherTool.
type WeatherToolOption func(*WeatherTool)

// WithWeatherHTTPClient overrides the HTTP client.
func WithWeatherHTTPClient(client *http.Client) WeatherToolOption {
	return func(t *WeatherTool) { t.client = client }
}

// WithWeatherBaseURL overrides the API endpoint.
func WithWeatherBaseURL(baseURL string) WeatherToolOption {
	return func(t *WeatherTool) { t.baseURL = baseURL }
}

func NewWeatherTool(apiKey string, opts ...WeatherToolOption) *WeatherTool {
	tool := &WeatherTool{
		apiKey:  apiKey,
		baseURL: defaultOpenWeatherBaseURL,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(tool)
	}
	return tool
}

func (t *WeatherTool) Name() string {
	return "get_current_weather"
}

func (t *WeatherTool) Description() string {
	return "Get the real-time weather information for a location"
}

func (t *WeatherTool) Parameters() ai.FunctionParameters {
	return ai.FunctionParameters{
		Type: ai.ParameterTypeObject,
		Properties: map[string]ai.ParameterProperty{
			"location": {Type: ai.ParameterTypeString},
			"unit":     {Type: ai.ParameterTypeString, Enum: []string{"celsius", "fahrenheit"}},
		},
		Required: []string{"location"},
	}
}

func (t *WeatherTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	location, _ := args["location"].(string)
	if location == "" {
		return nil, errors.New("location is required")
	}
	unit, _ := args["unit"].(string)

	units := "imperial"
	if unit == "celsius" {
		units = "metric"
	}

	query := url.Values{}
	query.Set("q", location)
	query.Set("appid", t.apiKey)
	query.Set("units", units)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/weather?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build weather request")
	}

	response, err := t.client.Do(request)
	if err != nil {
		return nil, errors.Wrap(err, "weather request failed")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("weather request failed with status %d", response.StatusCode)
	}

	var payload struct {
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode weather response")
	}

	conditions := "unknown"
	if len(payload.Weather) > 0 && payload.Weather[0].Description != "" {
		conditions = payload.Weather[0].Description
	}
	if unit == "" {
		unit = "fahrenheit"
	}

	return &WeatherReport{
		Location:    location,
		Temperature: payload.Main.Temp,
		Conditions:  conditions,
		Unit:        unit,
	}, nil
}
