package providers

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Factory creates Provider instances by name
type Factory struct {
	logger zerolog.Logger
}

// NewFactory creates a new provider factory
func NewFactory(logger zerolog.Logger) *Factory {
	return &Factory{
		logger: logger.With().Str("component", "provider_factory").Logger(),
	}
}

// CreateProvider creates a provider instance based on the provider name
func (f *Factory) CreateProvider(providerName string, config map[string]interface{}) (Provider, error) {
	f.logger.Info().
		Str("provider", providerName).
		Msg("Creating provider instance")

	switch providerName {
	case "yahoo":
		return NewYahoo(f.logger), nil
	case "trading212":
		return f.createTrading212Provider(config)
	case "bybit":
		return f.createBybitProvider(config)
	case "bitvavo":
		return f.createBitvavoProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerName)
	}
}

// GetSupportedProviders returns a list of supported provider names
func (f *Factory) GetSupportedProviders() []string {
	return []string{"yahoo", "trading212", "bybit", "bitvavo"}
}

func (f *Factory) createTrading212Provider(config map[string]interface{}) (Provider, error) {
	apiKey, ok := config["api_key"].(string)
	if !ok || apiKey == "" {
		return nil, fmt.Errorf("trading212 api_key is required")
	}

	return NewTrading212(apiKey, f.logger), nil
}

func (f *Factory) createBybitProvider(config map[string]interface{}) (Provider, error) {
	apiKey, ok := config["api_key"].(string)
	if !ok || apiKey == "" {
		return nil, fmt.Errorf("bybit api_key is required")
	}

	secret, ok := config["secret"].(string)
	if !ok || secret == "" {
		return nil, fmt.Errorf("bybit secret is required")
	}

	testnet, _ := config["testnet"].(bool)

	return NewBybit(apiKey, secret, testnet, f.logger), nil
}

func (f *Factory) createBitvavoProvider(config map[string]interface{}) (Provider, error) {
	apiKey, ok := config["api_key"].(string)
	if !ok || apiKey == "" {
		return nil, fmt.Errorf("bitvavo api_key is required")
	}

	secret, ok := config["secret"].(string)
	if !ok || secret == "" {
		return nil, fmt.Errorf("bitvavo secret is required")
	}

	return NewBitvavo(apiKey, secret, f.logger), nil
}
