// remote.go: gRPC-backed remote capability provider
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// remoteExecuteMethod is the full method name a remote capability server
// must expose. Requests and responses travel as JSON inside BytesValue
// envelopes, so any gRPC server with a matching method works without a
// shared generated stub.
const remoteExecuteMethod = "/gocapabilities.CapabilityService/Execute"

const remoteMaxMessageSize = 4 * 1024 * 1024 // 4MB

// remoteRequest is the JSON envelope sent to a remote capability server.
type remoteRequest struct {
	Capability string         `json:"capability"`
	Args       []any          `json:"args,omitempty"`
	Keywords   map[string]any `json:"keywords,omitempty"`
}

// remoteResponse is the JSON envelope returned by a remote capability
// server. Err is non-empty when the remote execution failed.
type remoteResponse struct {
	Result any    `json:"result,omitempty"`
	Err    string `json:"error,omitempty"`
}

// GRPCPluginFactory builds plugin instances whose capabilities execute on a
// remote gRPC server. The manifest's entrypoint is the server endpoint and
// the manifest's capability list becomes the instance's capabilities, each
// proxied over the wire.
//
// Manifest config keys understood by the factory:
//   - tls (bool): dial with TLS instead of insecure credentials
//   - ca_file (string): CA bundle for server verification
//   - server_name (string): TLS server name override
type GRPCPluginFactory struct {
	logger Logger
}

// NewGRPCPluginFactory creates the factory. The logger parameter accepts a
// Logger, a *zap.Logger, or nil.
func NewGRPCPluginFactory(logger any) *GRPCPluginFactory {
	return &GRPCPluginFactory{logger: NewLogger(logger)}
}

// SupportedTypes implements PluginFactory.
func (f *GRPCPluginFactory) SupportedTypes() []string {
	return []string{"grpc"}
}

// CreatePlugin implements PluginFactory. The connection is established by
// the instance initializer, so a load rolls back cleanly when the endpoint
// is unreachable, and closed by the finalizer on unload.
func (f *GRPCPluginFactory) CreatePlugin(ctx context.Context, manifest *PluginManifest, config map[string]any) (*PluginInstance, error) {
	if manifest.Entrypoint == "" {
		return nil, NewManifestMissingFieldError("entrypoint")
	}
	if len(manifest.Capabilities) == 0 {
		return nil, NewNoCapabilitiesError(manifest.Name)
	}

	client := &remoteClient{
		endpoint: manifest.Entrypoint,
		logger:   f.logger.With("plugin_id", manifest.Name, "endpoint", manifest.Entrypoint),
	}

	opts := []PluginOption{
		WithPluginLogger(f.logger),
		WithInitializer(func(ctx context.Context) error {
			return client.connect(config)
		}),
		WithFinalizer(func(ctx context.Context) error {
			return client.close()
		}),
	}
	if len(manifest.Dependencies) > 0 {
		opts = append(opts, WithDependencies(manifest.Dependencies...))
	}
	for _, name := range manifest.Capabilities {
		capability := name
		metadata := map[string]any{
			"source":   "grpc",
			"endpoint": manifest.Entrypoint,
		}
		opts = append(opts, WithCapability(capability, metadata,
			func(ctx context.Context, inv Invocation) (any, error) {
				return client.execute(ctx, capability, inv)
			}))
	}

	return NewPluginInstance(manifest.Name, config, opts...), nil
}

// remoteClient owns the gRPC connection shared by all capabilities of one
// remote plugin.
type remoteClient struct {
	endpoint string
	logger   Logger
	conn     *grpc.ClientConn
}

func (c *remoteClient) connect(config map[string]any) error {
	var opts []grpc.DialOption

	if useTLS, _ := config["tls"].(bool); useTLS {
		creds, err := buildRemoteTLS(config)
		if err != nil {
			return NewRemoteConnectionError(c.endpoint, err)
		}
		opts = append(opts, grpc.WithTransportCredentials(creds))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	opts = append(opts,
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(remoteMaxMessageSize),
			grpc.MaxCallSendMsgSize(remoteMaxMessageSize),
		),
	)

	conn, err := grpc.NewClient(c.endpoint, opts...)
	if err != nil {
		return NewRemoteConnectionError(c.endpoint, err)
	}
	c.conn = conn
	c.logger.Info("Remote capability connection established")
	return nil
}

func (c *remoteClient) close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		c.logger.Warn("Failed to close remote connection", "error", err)
		return err
	}
	return nil
}

// execute proxies one capability invocation over the wire.
func (c *remoteClient) execute(ctx context.Context, capability string, inv Invocation) (any, error) {
	if c.conn == nil {
		return nil, NewRemoteConnectionError(c.endpoint, fmt.Errorf("connection not established"))
	}

	payload, err := json.Marshal(remoteRequest{
		Capability: capability,
		Args:       inv.Args,
		Keywords:   inv.Keywords,
	})
	if err != nil {
		return nil, NewRemoteCallError(capability, err)
	}

	req := wrapperspb.Bytes(payload)
	resp := &wrapperspb.BytesValue{}
	if err := c.conn.Invoke(ctx, remoteExecuteMethod, req, resp); err != nil {
		return nil, NewRemoteCallError(capability, err)
	}

	var out remoteResponse
	if err := json.Unmarshal(resp.GetValue(), &out); err != nil {
		return nil, NewRemoteCallError(capability, err)
	}
	if out.Err != "" {
		return nil, NewRemoteCallError(capability, fmt.Errorf("%s", out.Err))
	}
	return out.Result, nil
}

// buildRemoteTLS assembles transport credentials from manifest config.
func buildRemoteTLS(config map[string]any) (credentials.TransportCredentials, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if serverName, ok := config["server_name"].(string); ok && serverName != "" {
		tlsConfig.ServerName = serverName
	}
	if caFile, ok := config["ca_file"].(string); ok && caFile != "" {
		pem, err := os.ReadFile(caFile) // #nosec G304 - path comes from operator-provided manifest config
		if err != nil {
			return nil, fmt.Errorf("reading CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates parsed from %s", caFile)
		}
		tlsConfig.RootCAs = pool
	}
	return credentials.NewTLS(tlsConfig), nil
}
