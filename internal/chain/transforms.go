// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chain

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// TRANSFORMS
// =============================================================================

// A Transform rewrites a step's incoming text before it is sent to the
// model. Transforms are pure and statically registered; chain requests
// name one by its registry key rather than supplying code.
type Transform func(string) string

var transforms = map[string]Transform{
	"uppercase": strings.ToUpper,
	"lowercase": strings.ToLower,
	"trim":      strings.TrimSpace,
	"summarize-prompt": func(s string) string {
		return "Summarize the following in at most three sentences:\n\n" + s
	},
}

// LookupTransform resolves a registered transform by name. The empty name
// resolves to the identity.
func LookupTransform(name string) (Transform, error) {
	if name == "" {
		return func(s string) string { return s }, nil
	}
	t, ok := transforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform %q (registered: %s)",
			name, strings.Join(TransformNames(), ", "))
	}
	return t, nil
}

// TransformNames returns the registered transform names, sorted.
func TransformNames() []string {
	names := make([]string, 0, len(transforms))
	for name := range transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
