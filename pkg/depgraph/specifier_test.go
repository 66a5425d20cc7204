package depgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/deadwood/pkg/depgraph"
)

func TestClassifySpecifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec string
		want depgraph.SpecKind
	}{
		{spec: "lodash", want: depgraph.SpecExternal},
		{spec: "lodash/fp", want: depgraph.SpecExternal},
		{spec: "@babel/parser", want: depgraph.SpecExternal},
		{spec: "./util", want: depgraph.SpecInternal},
		{spec: "../shared/client", want: depgraph.SpecInternal},
		{spec: ".", want: depgraph.SpecInternal},
		{spec: "..", want: depgraph.SpecInternal},
		{spec: "/src/app", want: depgraph.SpecInternal},
		{spec: "node:path", want: depgraph.SpecBuiltin},
		{spec: "node:fs/promises", want: depgraph.SpecBuiltin},
		{spec: "#internal/config", want: depgraph.SpecAlias},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, depgraph.ClassifySpecifier(tt.spec))
		})
	}
}

func TestPackageName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec string
		want string
	}{
		{spec: "lodash", want: "lodash"},
		{spec: "lodash/fp", want: "lodash"},
		{spec: "lodash/fp/merge", want: "lodash"},
		{spec: "@scope/pkg", want: "@scope/pkg"},
		{spec: "@scope/pkg/sub", want: "@scope/pkg"},
		{spec: "@scope/pkg/sub/deep", want: "@scope/pkg"},
		{spec: "@scope", want: "@scope"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, depgraph.PackageName(tt.spec))
		})
	}
}
