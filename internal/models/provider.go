package models

import "fmt"

// Provider constants
const (
	ProviderLever      = "lever"
	ProviderGreenhouse = "greenhouse"
	ProviderGetOnBrd   = "getonbrd"
)

// ATSProviders are the providers resolvable by website discovery.
// The aggregator provider is queried directly and never discovered.
var ATSProviders = []string{ProviderLever, ProviderGreenhouse}

// ValidateProvider rejects provider names outside the known set
func ValidateProvider(provider string) error {
	switch provider {
	case ProviderLever, ProviderGreenhouse, ProviderGetOnBrd:
		return nil
	}
	return fmt.Errorf("unknown provider: %s", provider)
}
