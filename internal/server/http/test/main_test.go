package http

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/suite"

	"github.com/leshachaplin/testgenie/app"
	"github.com/leshachaplin/testgenie/internal/config"
	"github.com/leshachaplin/testgenie/internal/storage/event/memory"
	"github.com/leshachaplin/testgenie/internal/storage/event/sqlite"
)

const (
	defaultAddrPublic = "127.0.0.1:18089"
)

type IntegrationTestSuite struct {
	ctx      context.Context
	cancelFn context.CancelFunc

	app    *app.App
	client *Client

	wg *sync.WaitGroup

	suite.Suite
}

func (i *IntegrationTestSuite) SetupSuite() {
	ctx, cnsl := context.WithTimeout(context.Background(), time.Minute*2)
	i.ctx = ctx
	i.cancelFn = cnsl

	dbPath := filepath.Join(i.T().TempDir(), "analytics.db")
	i.app = app.New(func() (config.Config, error) {
		return config.Config{
			LogLevel: string(app.DEBUG),
			Addr:     defaultAddrPublic,
			Store: config.Store{
				Driver:         sqlite.Driver,
				BufferCapacity: memory.DefaultCapacity,
			},
			SQLite: sqlite.Config{Path: dbPath},
		}, nil
	})

	wg := &sync.WaitGroup{}
	wg.Add(1)
	i.wg = wg
	go func() {
		defer wg.Done()
		i.app.Start()
	}()

	baseURL := fmt.Sprintf("http://%s", defaultAddrPublic)
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = 5 * time.Second
	retryClient.Logger = nil
	res, err := retryClient.Get(baseURL + "/_/ready")
	i.Require().NoError(err)
	_ = res.Body.Close()

	i.client = NewClient(baseURL, retryClient.StandardClient())
}

func (i *IntegrationTestSuite) TearDownSuite() {
	i.app.Stop()
	i.wg.Wait()
	i.cancelFn()
}

func TestIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping collector integration test in short mode")
	}
	suite.Run(t, new(IntegrationTestSuite))
}
