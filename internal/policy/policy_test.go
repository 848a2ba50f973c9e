package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := map[string]string{
		"  System   Architecture ": "system architecture",
		"Data_Management/Flow":     "data management/flow",
		"Examples & Notebooks":     "examples and notebooks",
		"back-end__systems":        "back end systems",
		"":                         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeTitle(in), in)
	}
}

func TestDerive_ExampleRepository(t *testing.T) {
	p := Derive([]string{"api/routes.py", "infra/Dockerfile", "README.md"})

	assert.True(t, p.Signals.Infra)
	assert.True(t, p.Signals.Backend)
	assert.True(t, p.Signals.HasPy)
	assert.False(t, p.Signals.Frontend)

	assert.True(t, p.IsAllowed("Deployment/Infrastructure"))
	assert.True(t, p.IsAllowed("Backend Systems"))
	assert.False(t, p.IsAllowed("Frontend Components"))
	assert.True(t, p.IsForbidden("frontend components"))
	assert.True(t, p.IsForbidden("Examples & Notebooks"))
	assert.True(t, p.IsForbidden("examples"))
	assert.True(t, p.IsForbidden("Misc"))
	assert.False(t, p.IsAllowed("Model Integration"))
}

func TestDerive_ConditionalSections(t *testing.T) {
	p := Derive([]string{
		"web/package.json",
		"examples/demo.py",
		"training/train.py",
	})
	assert.True(t, p.IsAllowed("frontend components"))
	assert.True(t, p.IsAllowed("examples and notebooks"))
	assert.True(t, p.IsAllowed("model integration"))
	assert.False(t, p.IsForbidden("examples"))
	assert.False(t, p.IsForbidden("frontend components"))
}

func TestDerive_ListsAreSortedAndUnique(t *testing.T) {
	p := Derive(nil)
	assert.IsIncreasing(t, p.Allowed)
	assert.IsIncreasing(t, p.Forbidden)
	assert.Len(t, p.Allowed, 6)
	assert.Contains(t, p.Forbidden, "backend systems")
	assert.Contains(t, p.Forbidden, "playground")
}

func TestDeriveSignals_ModelWords(t *testing.T) {
	assert.False(t, DeriveSignals([]string{"site/index.html", ".github/workflows/ci.yml"}).Models)
	assert.True(t, DeriveSignals([]string{"src/ml/train.py"}).Models)
	assert.True(t, DeriveSignals([]string{"pkg/nn-layers.go"}).Models)
}

func TestAllowedDisplay(t *testing.T) {
	p := Derive([]string{"main.go"})
	assert.Contains(t, p.AllowedDisplay(), "Data Management/Flow")
	assert.Contains(t, p.AllowedDisplay(), "Backend Systems")
}
