package output

// ProviderGuard interface - Output port
// Verifies that the external tool only talks to a model provider on this host.
type ProviderGuard interface {
	// AssertLocalProvider returns an error wrapping domain.ErrNonLocalProvider
	// when the configured provider is remote or unknown.
	AssertLocalProvider() error
}
