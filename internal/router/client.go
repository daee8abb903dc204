package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SolGate/internal/domain/models"
	xhttp "SolGate/pkg/http"
)

// RPCClient issues JSON-RPC calls to a specific provider endpoint.
type RPCClient struct {
	http    *xhttp.Client
	network models.Network
}

func NewRPCClient(network models.Network, timeout time.Duration) *RPCClient {
	return &RPCClient{
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		network: network,
	}
}

// endpoint builds the provider URL with the API key applied per auth style.
func (c *RPCClient) endpoint(p *models.Provider) (string, map[string]string) {
	base := p.URLForNetwork(c.network)
	headers := map[string]string{"Content-Type": "application/json"}

	switch p.Auth {
	case models.AuthURLPath:
		if p.APIKey != "" {
			return strings.TrimSuffix(base, "/") + "/" + p.APIKey, headers
		}
	case models.AuthHeader:
		if p.APIKey != "" {
			headers["Authorization"] = "Bearer " + p.APIKey
		}
	}
	return base, headers
}

// Call sends one JSON-RPC request. A response carrying a JSON-RPC error
// object is returned as (resp, nil); transport and HTTP-level failures are
// returned as errors.
func (c *RPCClient) Call(ctx context.Context, p *models.Provider, req *models.RPCRequest) (*models.RPCResponse, error) {
	url, headers := c.endpoint(p)

	var resp models.RPCResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     url,
		Headers: headers,
		Body:    req,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("rpc call to %s: %w", p.Name, err)
	}

	return &resp, nil
}

// CheckHealth issues a getHealth probe against the provider.
func (c *RPCClient) CheckHealth(ctx context.Context, p *models.Provider) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := c.Call(ctx, p, models.NewRPCRequest("getHealth", nil))
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("getHealth on %s: %w", p.Name, resp.Error)
	}
	return nil
}
