package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/hetarolabs/samantha/ai"
)

const defaultCoinMarketCapBaseURL = "https://pro-api.coinmarketcap.com/v2"

// supportedCurrencies are the fiat quote currencies exposed to the model.
var supportedCurrencies = []string{
	"USD", "CNY", "HKD", "TWD", "GBP", "SGD", "ZAR", "KRW", "UAH",
}

// CryptoQuote is the tool result fed back to the model.
type CryptoQuote struct {
	Price     float64 `json:"price"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Slug      string  `json:"slug"`
	Timestamp string  `json:"timestamp"`
}

// CryptoPriceTool looks up spot prices via the CoinMarketCap API.
type CryptoPriceTool struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ ai.Tool = (*CryptoPriceTool)(nil)

// CryptoPriceToolOption customizes a CryptoPriceTool.
type CryptoPriceToolOption func(*CryptoPriceTool)

// WithCryptoHTTPClient overrides the HTTP client.
func WithCryptoHTTPClient(client *http.Client) CryptoPriceToolOption {
	return func(t *CryptoPriceTool) { t.client = client }
}

// WithCryptoBaseURL overrides the API endpoint.
func WithCryptoBaseURL(baseURL string) CryptoPriceToolOption {
	return func(t *CryptoPriceTool) { t.baseURL = baseURL }
}

func NewCryptoPriceTool(apiKey string, opts ...CryptoPriceToolOption) *CryptoPriceTool {
	tool := &CryptoPriceTool{
		apiKey:  apiKey,
		baseURL: defaultCoinMarketCapBaseURL,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(tool)
	}
	return tool
}

func (t *CryptoPriceTool) Name() string {
	return "crypto-price"
}

func (t *CryptoPriceTool) Description() string {
	return "This is useful when you have to get the current price of a cryptocurrency"
}

func (t *CryptoPriceTool) Parameters() ai.FunctionParameters {
	return ai.FunctionParameters{
		Type: ai.ParameterTypeObject,
		Properties: map[string]ai.ParameterProperty{
			"symbol":   {Type: ai.ParameterTypeString},
			"currency": {Type: ai.ParameterTypeString, Enum: supportedCurrencies},
		},
		Required: []string{"symbol"},
	}
}

func (t *CryptoPriceTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	symbol, _ := args["symbol"].(string)
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	currency, _ := args["currency"].(string)
	if currency == "" {
		currency = "USD"
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("convert", currency)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet,
		t.baseURL+"/cryptocurrency/quotes/latest?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build quote request")
	}
	request.Header.Set("X-CMC_PRO_API_KEY", t.apiKey)

	response, err := t.client.Do(request)
	if err != nil {
		return nil, errors.Wrap(err, "quote request failed")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("quote request failed with status %d", response.StatusCode)
	}

	var payload struct {
		Data map[string][]struct {
			Name  string `json:"name"`
			Slug  string `json:"slug"`
			Quote map[string]struct {
				Price     float64 `json:"price"`
				Timestamp string  `json:"last_updated"`
			} `json:"quote"`
		} `json:"data"`
	}
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode quote response")
	}

	listings, ok := payload.Data[symbol]
	if !ok || len(listings) == 0 {
		return nil, errors.Errorf("no listing for symbol %q", symbol)
	}
	listing := listings[0]

	quote, ok := listing.Quote[currency]
	if !ok {
		return nil, errors.Errorf("no quote in currency %q", currency)
	}

	return &CryptoQuote{
		Price:     quote.Price,
		Symbol:    symbol,
		Name:      listing.Name,
		Slug:      listing.Slug,
		Timestamp: quote.Timestamp,
	}, nil
}
