package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/mms/internal/engine"
	"github.com/roach88/mms/internal/resource"
	"github.com/roach88/mms/internal/testutil"
)

func TestFuseki_Scenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)

	for _, f := range files {
		scenario, err := LoadScenario(f)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			fuseki := testutil.StartFuseki(t)
			target := Target{
				Service: resource.New(engine.New(fuseki.Store), resource.Config{RootIRI: root, ServiceID: "mms-scenarios"}),
				Store:   fuseki.Store,
				RootIRI: root,
			}

			result, err := Run(context.Background(), target, scenario)
			require.NoError(t, err)
			require.True(t, result.Pass, strings.Join(result.Errors, "\n"))

			AssertGolden(t, scenario.Name, result)
		})
	}
}
