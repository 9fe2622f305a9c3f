// Package c6 implements the C6 Bank consignado marketplace API client:
// password-grant authentication, loan simulation, formalization links
// and proposal status lookups.
package c6

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

const (
	defaultBaseURL = "https://marketplace-proposal-service-api-p.c6bank.info"
	defaultTimeout = 15 * time.Second

	// Accept headers are versioned per endpoint in the C6 spec.
	acceptErrorV2      = "application/vnd.c6bank_error_data_v2+json"
	acceptURLConsultV1 = "application/vnd.c6bank_url_consult_v1+json"
)

// Sentinel errors for callers that branch on failure class.
var (
	ErrUnauthorized = errors.New("c6: authentication failed")
	ErrUnavailable  = errors.New("c6: upstream unavailable")
	ErrNotFound     = errors.New("c6: proposal not found")
)

// Config carries the marketplace credentials.
type Config struct {
	BaseURL      string
	ClientUser   string
	Password     string
	PromoterCode string
	Timeout      time.Duration
}

// Client talks to the C6 consignado marketplace API. Access tokens are
// cached until shortly before expiry.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientUser   string
	password     string
	promoterCode string
	logger       *logging.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a C6 API client.
func NewClient(cfg Config, logger *logging.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PromoterCode == "" {
		cfg.PromoterCode = "000224"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientUser:   cfg.ClientUser,
		password:     cfg.Password,
		promoterCode: cfg.PromoterCode,
		logger:       logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("username", c.clientUser)
	form.Set("password", c.password)
	form.Set("grant_type", "password")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("c6: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrUnavailable, resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("c6: decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrUnauthorized)
	}

	ttl := time.Duration(token.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c.token = token.AccessToken
	// Renew a minute early so in-flight requests never carry a token
	// that expires mid-call.
	c.tokenExpiry = time.Now().Add(ttl - time.Minute)
	return c.token, nil
}

// SimulationRequest is one margem-livre loan simulation.
type SimulationRequest struct {
	CPF             string
	RequestedAmount float64
	Installments    int
	BirthDate       string
	IncomeAmount    float64
}

// Installment is one repayment entry of a simulation.
type Installment struct {
	Number  int     `json:"number"`
	Amount  float64 `json:"amount"`
	DueDate string  `json:"due_date"`
}

// SimulationResult is the marketplace simulation response.
type SimulationResult struct {
	ProposalNumber  string        `json:"proposal_number,omitempty"`
	RequestedAmount float64       `json:"requested_amount"`
	NetAmount       float64       `json:"net_amount"`
	TotalAmount     float64       `json:"total_amount"`
	Installments    []Installment `json:"installments"`
}

type simulationPayload struct {
	OperationType        string           `json:"operation_type"`
	ProductTypeCode      string           `json:"product_type_code"`
	SimulationType       string           `json:"simulation_type"`
	FormalizationSubtype string           `json:"formalization_subtype"`
	PromoterCode         string           `json:"promoter_code"`
	CovenantGroup        string           `json:"covenant_group"`
	PublicAgency         string           `json:"public_agency"`
	RequestedAmount      float64          `json:"requested_amount"`
	InstallmentQuantity  int              `json:"installment_quantity"`
	Client               simulationClient `json:"client"`
}

type simulationClient struct {
	TaxIdentifier string  `json:"tax_identifier"`
	BirthDate     string  `json:"birth_date"`
	IncomeAmount  float64 `json:"income_amount"`
}

// SimulateConsignado runs an INSS margem-livre simulation for the
// requested amount.
func (c *Client) SimulateConsignado(ctx context.Context, simReq SimulationRequest) (*SimulationResult, error) {
	if simReq.Installments <= 0 {
		simReq.Installments = 84
	}
	if simReq.BirthDate == "" {
		simReq.BirthDate = "1980-01-01"
	}
	if simReq.IncomeAmount <= 0 {
		simReq.IncomeAmount = 3500
	}

	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	payload := simulationPayload{
		OperationType:        "NOVA",
		ProductTypeCode:      "0001",
		SimulationType:       "POR_VALOR_SOLICITADO",
		FormalizationSubtype: "DIGITAL_WEB",
		PromoterCode:         c.promoterCode,
		CovenantGroup:        "INSS",
		PublicAgency:         "000001",
		RequestedAmount:      simReq.RequestedAmount,
		InstallmentQuantity:  simReq.Installments,
		Client: simulationClient{
			TaxIdentifier: digitsOnly(simReq.CPF),
			BirthDate:     simReq.BirthDate,
			IncomeAmount:  simReq.IncomeAmount,
		},
	}

	var result SimulationResult
	if err := c.postJSON(ctx, token, "/marketplace/proposal/simulation", acceptErrorV2, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FormalizationURL fetches the digital formalization link for a
// proposal.
func (c *Client) FormalizationURL(ctx context.Context, proposalNumber string) (string, error) {
	if strings.TrimSpace(proposalNumber) == "" {
		return "", errors.New("c6: proposal number required")
	}

	token, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}

	var decoded struct {
		URL string `json:"url"`
	}
	path := "/marketplace/proposal/formalization-url?proposalNumber=" + url.QueryEscape(proposalNumber)
	if err := c.getJSON(ctx, token, path, acceptURLConsultV1, &decoded); err != nil {
		return "", err
	}
	if decoded.URL == "" {
		return "", fmt.Errorf("%w: formalization url missing", ErrUnavailable)
	}
	return decoded.URL, nil
}

// ProposalStatus is the tracking state of a submitted proposal.
type ProposalStatus struct {
	ProposalNumber string `json:"proposal_number"`
	Status         string `json:"status"`
	Description    string `json:"description,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// GetProposalStatus looks up the current tracking status of a proposal.
func (c *Client) GetProposalStatus(ctx context.Context, proposalNumber string) (*ProposalStatus, error) {
	if strings.TrimSpace(proposalNumber) == "" {
		return nil, errors.New("c6: proposal number required")
	}

	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var status ProposalStatus
	path := "/marketplace/proposal/status?proposalNumber=" + url.QueryEscape(proposalNumber)
	if err := c.getJSON(ctx, token, path, acceptErrorV2, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) postJSON(ctx context.Context, token, path, accept string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("c6: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("c6: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, token, path, accept string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("c6: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", accept)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: %s returned %d", ErrUnavailable, req.URL.Path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("c6: decode response: %w", err)
	}
	return nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
