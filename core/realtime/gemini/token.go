package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const authTokensURL = "https://generativelanguage.googleapis.com/v1alpha/auth_tokens"

// Token is a short-lived credential minted from an API key. Its Name can
// be handed to NewClient in place of the key itself, keeping the key off
// untrusted hosts.
type Token struct {
	Name       string    `json:"name"`
	ExpireTime time.Time `json:"expireTime"`
}

// EphemeralTokenOptions constrains a minted token. Zero fields fall back
// to server defaults.
type EphemeralTokenOptions struct {
	// Uses limits how many sessions the token can start.
	Uses int
	// ExpireTime bounds the lifetime of sessions started with the token.
	ExpireTime time.Time
	// NewSessionExpireTime bounds how long the token can start new
	// sessions.
	NewSessionExpireTime time.Time
}

type authTokenRequest struct {
	Uses                 int    `json:"uses,omitempty"`
	ExpireTime           string `json:"expireTime,omitempty"`
	NewSessionExpireTime string `json:"newSessionExpireTime,omitempty"`
}

func (c *Client) CreateEphemeralToken(ctx context.Context, opts EphemeralTokenOptions) (*Token, error) {
	ctx, span := tracer.Start(ctx, "create ephemeral token")
	defer span.End()

	reqBody := authTokenRequest{Uses: opts.Uses}
	if !opts.ExpireTime.IsZero() {
		reqBody.ExpireTime = opts.ExpireTime.UTC().Format(time.RFC3339)
	}
	if !opts.NewSessionExpireTime.IsZero() {
		reqBody.NewSessionExpireTime = opts.NewSessionExpireTime.UTC().Format(time.RFC3339)
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.authTokensURL, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	span.SetAttributes(attribute.String("request.url", req.URL.String()))
	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	resp, err := client.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		err = fmt.Errorf("error unmarshalling response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return &token, nil
}
