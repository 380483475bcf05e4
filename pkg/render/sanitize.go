package render

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	outputPolicyOnce sync.Once
	outputPolicy     *bluemonday.Policy
)

// outputSanitizer is applied to outputs with mediatype="text/html".
func outputSanitizer() *bluemonday.Policy {
	outputPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowAttrs("class").Globally()
		policy.AllowAttrs("role", "aria-hidden", "aria-label").Globally()
		outputPolicy = policy
	})
	return outputPolicy
}
