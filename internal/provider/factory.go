package provider

import "strings"

// GetAvailableProviders returns a list of all provider types this build can construct
func GetAvailableProviders() []ProviderType {
	return []ProviderType{
		ProviderStripe,
		ProviderPaystack,
		ProviderFlutterwave,
		ProviderCinetPay,
		ProviderSandbox,
	}
}

// IsProviderSupported checks if a provider type is supported
func IsProviderSupported(providerType ProviderType) bool {
	for _, available := range GetAvailableProviders() {
		if available == providerType {
			return true
		}
	}
	return false
}

// ParseProviderType normalizes a name from a path or config key.
func ParseProviderType(name string) (ProviderType, bool) {
	t := ProviderType(strings.ToLower(strings.TrimSpace(name)))
	return t, IsProviderSupported(t)
}
