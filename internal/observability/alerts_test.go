package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestOrderingAlertRules(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "ordering.yml"))
	require.NoError(t, err)

	var spec alertSpec
	require.NoError(t, yaml.Unmarshal(data, &spec))
	require.Len(t, spec.Groups, 1)
	group := spec.Groups[0]
	assert.Equal(t, "ordering", group.Name)

	expected := map[string]string{
		"HighErrorRate":     "critical",
		"HighLatency":       "warning",
		"ItemsDroppedSpike": "warning",
		"TotalsClamped":     "warning",
	}
	require.Len(t, group.Rules, len(expected))

	for _, rule := range group.Rules {
		severity, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		assert.Equal(t, severity, rule.Labels["severity"], rule.Alert)
		assert.NotEmpty(t, rule.Expr, rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		assert.Contains(t, rule.Annotations["runbook"], "docs/runbook-ordering.md#", rule.Alert)
		assert.Contains(t, rule.Expr, "eatandrun_", rule.Alert)
	}
}
