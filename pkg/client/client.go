package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/daniacca/ecogrid/internal/ecology"
)

// ConfigBuilder provides a fluent API for building simulation configs.
// Unset fields keep the values of ecology.DefaultConfig.
type ConfigBuilder struct {
	cfg ecology.Config
}

// NewConfig creates a builder starting from the default 80x80 field.
func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{cfg: ecology.DefaultConfig()}
}

// Size sets the field dimensions.
func (cb *ConfigBuilder) Size(width, height int) *ConfigBuilder {
	cb.cfg.Width = width
	cb.cfg.Height = height
	return cb
}

// Seed fixes the random seed so runs can be reproduced.
func (cb *ConfigBuilder) Seed(seed int64) *ConfigBuilder {
	cb.cfg.Seed = seed
	return cb
}

// Creation sets the per-cell probability of seeding kind.
// Unknown kinds are ignored.
func (cb *ConfigBuilder) Creation(kind ecology.Kind, probability float64) *ConfigBuilder {
	switch kind {
	case ecology.Grazer:
		cb.cfg.Creation.Grazer = probability
	case ecology.MidPredator:
		cb.cfg.Creation.MidPredator = probability
	case ecology.ApexPredator:
		cb.cfg.Creation.ApexPredator = probability
	}
	return cb
}

// Empty sets every creation probability to zero, for fields populated by hand.
func (cb *ConfigBuilder) Empty() *ConfigBuilder {
	cb.cfg.Creation = ecology.CreationProbabilities{}
	return cb
}

// Viability sets the policy that decides when a run stops.
func (cb *ConfigBuilder) Viability(mode ecology.ViabilityMode, minCount int) *ConfigBuilder {
	cb.cfg.Viability = ecology.Viability{Mode: mode, MinCount: minCount}
	return cb
}

// Build returns the config.
func (cb *ConfigBuilder) Build() ecology.Config {
	return cb.cfg
}

// WebhookBuilder provides a fluent API for registering webhook notifiers.
type WebhookBuilder struct {
	id         string
	url        string
	headers    map[string]string
	haltedOnly bool
}

// NewWebhook creates a webhook notifier registration posting to url.
func NewWebhook(id, url string) *WebhookBuilder {
	return &WebhookBuilder{id: id, url: url, headers: make(map[string]string)}
}

// Header adds a header sent with every delivery.
func (wb *WebhookBuilder) Header(key, value string) *WebhookBuilder {
	wb.headers[key] = value
	return wb
}

// HaltedOnly restricts deliveries to the event emitted when a population
// stops being viable.
func (wb *WebhookBuilder) HaltedOnly() *WebhookBuilder {
	wb.haltedOnly = true
	return wb
}

// Build returns the registration request body.
func (wb *WebhookBuilder) Build() map[string]any {
	return map[string]any{
		"type": "webhook",
		"id":   wb.id,
		"config": map[string]any{
			"url":         wb.url,
			"headers":     wb.headers,
			"halted_only": wb.haltedOnly,
		},
	}
}

// Status describes a simulation as reported by the server.
type Status struct {
	ID      string                  `json:"id"`
	Step    int                     `json:"step"`
	Viable  bool                    `json:"viable"`
	Running bool                    `json:"running"`
	Width   int                     `json:"width"`
	Height  int                     `json:"height"`
	Counts  ecology.PopulationStats `json:"counts"`
}

// RunResult is the outcome of RunFor.
type RunResult struct {
	Status
	StepsTaken int `json:"steps_taken"`
}

// Grid is the field encoded one symbol per cell, row-major.
type Grid struct {
	Step   int    `json:"step"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Cells  string `json:"cells"`
}

// Row returns row r of the field.
func (g Grid) Row(r int) string {
	return g.Cells[r*g.Width : (r+1)*g.Width]
}

// APIError is returned when the server answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to an ecogrid server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
// A nil httpClient uses http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

func (c *Client) do(ctx context.Context, method string, query url.Values, body any, out any, path ...string) error {
	u, err := url.JoinPath(c.baseURL, path...)
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// CreateSimulation creates the simulation id, replacing any existing one.
func (c *Client) CreateSimulation(ctx context.Context, id string, cfg *ConfigBuilder) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodPost, nil, cfg.Build(), &status, "sim", id)
	return status, err
}

// NewSimulation creates a simulation under a server-generated ID, returned
// in Status.ID.
func (c *Client) NewSimulation(ctx context.Context, cfg *ConfigBuilder) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodPost, nil, cfg.Build(), &status, "sims")
	return status, err
}

// DeleteSimulation stops and removes a simulation.
func (c *Client) DeleteSimulation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, nil, nil, nil, "sim", id)
}

// ListSimulations returns the IDs of every simulation on the server.
func (c *Client) ListSimulations(ctx context.Context) ([]string, error) {
	var resp struct {
		Simulations []string `json:"simulations"`
	}
	err := c.do(ctx, http.MethodGet, nil, nil, &resp, "sims")
	return resp.Simulations, err
}

// Step advances the simulation n times regardless of viability.
func (c *Client) Step(ctx context.Context, id string, n int) (Status, error) {
	var status Status
	q := url.Values{"n": {strconv.Itoa(n)}}
	err := c.do(ctx, http.MethodPost, q, nil, &status, "sim", id, "step")
	return status, err
}

// RunFor steps up to steps times, stopping once the population is no longer viable.
func (c *Client) RunFor(ctx context.Context, id string, steps int) (RunResult, error) {
	var result RunResult
	q := url.Values{"steps": {strconv.Itoa(steps)}}
	err := c.do(ctx, http.MethodPost, q, nil, &result, "sim", id, "run")
	return result, err
}

// Start makes the server step the simulation every intervalMillis milliseconds.
func (c *Client) Start(ctx context.Context, id string, intervalMillis int) error {
	q := url.Values{"interval": {strconv.Itoa(intervalMillis)}}
	return c.do(ctx, http.MethodPost, q, nil, nil, "sim", id, "start")
}

// Stop halts a background run.
func (c *Client) Stop(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, nil, nil, nil, "sim", id, "stop")
}

// Stats returns the current step, viability and per-kind counts.
func (c *Client) Stats(ctx context.Context, id string) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodGet, nil, nil, &status, "sim", id, "stats")
	return status, err
}

// ConfigSchema returns the server's JSON Schema for simulation configs.
func (c *Client) ConfigSchema(ctx context.Context) (map[string]any, error) {
	var schema map[string]any
	err := c.do(ctx, http.MethodGet, nil, nil, &schema, "schema", "config")
	return schema, err
}

// Grid returns the current field.
func (c *Client) Grid(ctx context.Context, id string) (Grid, error) {
	var grid Grid
	err := c.do(ctx, http.MethodGet, nil, nil, &grid, "sim", id, "grid")
	return grid, err
}

// Agents returns every live agent in acting order.
func (c *Client) Agents(ctx context.Context, id string) ([]ecology.Agent, error) {
	var resp struct {
		Agents []ecology.Agent `json:"agents"`
	}
	err := c.do(ctx, http.MethodGet, nil, nil, &resp, "sim", id, "agents")
	return resp.Agents, err
}

// Spawn drops a new agent of kind on an empty cell.
func (c *Client) Spawn(ctx context.Context, id string, kind ecology.Kind, loc ecology.Location) (ecology.Agent, error) {
	var agent ecology.Agent
	body := map[string]any{"kind": kind, "row": loc.Row, "col": loc.Col}
	err := c.do(ctx, http.MethodPost, nil, body, &agent, "sim", id, "agents")
	return agent, err
}

// RemoveArea removes every agent within radius of center; radius 0 removes
// a single cell. It returns the number of agents removed.
func (c *Client) RemoveArea(ctx context.Context, id string, center ecology.Location, radius int) (int, error) {
	var resp struct {
		Removed int `json:"removed"`
	}
	q := url.Values{
		"row":    {strconv.Itoa(center.Row)},
		"col":    {strconv.Itoa(center.Col)},
		"radius": {strconv.Itoa(radius)},
	}
	err := c.do(ctx, http.MethodDelete, q, nil, &resp, "sim", id, "cell")
	return resp.Removed, err
}

// SaveSnapshot asks the server to write a snapshot and returns its path.
func (c *Client) SaveSnapshot(ctx context.Context, id string) (string, error) {
	var resp map[string]string
	err := c.do(ctx, http.MethodPost, nil, nil, &resp, "sim", id, "snapshot")
	return resp["path"], err
}

// Snapshot fetches the last snapshot written for the simulation.
func (c *Client) Snapshot(ctx context.Context, id string) (ecology.Snapshot, error) {
	var snapshot ecology.Snapshot
	err := c.do(ctx, http.MethodGet, nil, nil, &snapshot, "sim", id, "snapshot")
	return snapshot, err
}

// RestoreSnapshot loads the last snapshot back into the simulation.
func (c *Client) RestoreSnapshot(ctx context.Context, id string) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodPost, nil, nil, &status, "sim", id, "restore")
	return status, err
}

// RegisterWebhook registers a webhook notifier on the server.
func (c *Client) RegisterWebhook(ctx context.Context, wb *WebhookBuilder) error {
	return c.do(ctx, http.MethodPost, nil, wb.Build(), nil, "notifiers")
}

// UnregisterNotifier removes a notifier from the server.
func (c *Client) UnregisterNotifier(ctx context.Context, notifierID string) error {
	return c.do(ctx, http.MethodDelete, nil, nil, nil, "notifiers", notifierID)
}
