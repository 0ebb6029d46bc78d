package testutil

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/roach88/mms/internal/store"
)

const (
	fusekiImage    = "stain/jena-fuseki:latest"
	fusekiPort     = "3030/tcp"
	fusekiPassword = "mms-test"
	fusekiDataset  = "ds"
)

// Fuseki is a running Jena Fuseki container with one in-memory dataset.
type Fuseki struct {
	QueryURL  string
	UpdateURL string
	Store     *store.HTTPStore
}

// StartFuseki starts a Fuseki container for the duration of t.
//
// The test is skipped under -short or when no container provider is
// reachable. The container is terminated by t.Cleanup.
func StartFuseki(t *testing.T) *Fuseki {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Fuseki container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        fusekiImage,
			ExposedPorts: []string{fusekiPort},
			Env:          map[string]string{"ADMIN_PASSWORD": fusekiPassword},
			WaitingFor: wait.ForHTTP("/$/ping").
				WithPort(fusekiPort).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	if err != nil {
		t.Fatalf("start fuseki: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("fuseki host: %v", err)
	}
	port, err := c.MappedPort(ctx, fusekiPort)
	if err != nil {
		t.Fatalf("fuseki port: %v", err)
	}
	base := fmt.Sprintf("http://%s:%s", host, port.Port())

	if err := createDataset(ctx, base); err != nil {
		t.Fatalf("create fuseki dataset: %v", err)
	}

	f := &Fuseki{
		QueryURL:  base + "/" + fusekiDataset + "/query",
		UpdateURL: base + "/" + fusekiDataset + "/update",
	}
	f.Store = store.NewHTTPStore(f.QueryURL, f.UpdateURL, store.WithTimeout(30*time.Second))
	return f
}

func createDataset(ctx context.Context, base string) error {
	form := url.Values{"dbName": {fusekiDataset}, "dbType": {"mem"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/$/datasets", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("admin", fusekiPassword)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
