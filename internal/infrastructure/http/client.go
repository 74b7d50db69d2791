package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/yukia3e/evm-contract-deployer/internal/domain/model"
	"github.com/yukia3e/evm-contract-deployer/internal/domain/repository"
	"github.com/yukia3e/evm-contract-deployer/internal/util"
)

const (
	packageName = "http"

	maxArtifactSize = 32 << 20
)

type client struct {
	httpClient *http.Client
}

// NewArtifactClient downloads compiled contract artifacts served over HTTP(S).
func NewArtifactClient(httpClient *http.Client) repository.ArtifactRepository {
	return &client{
		httpClient: httpClient,
	}
}

func (c *client) Load(ctx context.Context, url string) (*model.Artifact, error) {
	funcName := util.FuncName()

	res, err := c.doRequest(ctx, url)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("error making request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("status code not 200: %d", res.StatusCode))
	}

	var artifact model.Artifact
	if err := json.NewDecoder(io.LimitReader(res.Body, maxArtifactSize)).Decode(&artifact); err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("error decoding response body: %w", err))
	}

	if artifact.Bytecode == "" {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("error decoding response body: bytecode is not set"))
	}

	return &artifact, nil
}

func (c *client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), fmt.Errorf("error creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), fmt.Errorf("error do request: %w", err))
	}

	return resp, nil
}
