package payment

import "fmt"

func errorf(provider, format string, args ...any) string {
	return provider + ": " + fmt.Sprintf(format, args...)
}

// StatusFailed builds a failure StatusResult carrying the provider name.
func StatusFailed(provider, format string, args ...any) StatusResult {
	return StatusResult{Error: errorf(provider, format, args...)}
}

// CallbackFailed builds a failure CallbackResult carrying the provider name.
func CallbackFailed(provider, format string, args ...any) CallbackResult {
	return CallbackResult{Error: errorf(provider, format, args...)}
}

// RefundFailed builds a failure RefundResult carrying the provider name.
func RefundFailed(provider, format string, args ...any) RefundResult {
	return RefundResult{Error: errorf(provider, format, args...)}
}
