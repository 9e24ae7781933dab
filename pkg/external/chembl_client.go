package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Molecule types the adapters filter on
const (
	MoleculeTypeSmallMolecule = "Small molecule"
	MoleculeTypeADC           = "Antibody drug conjugate"
)

// DefaultChEMBLBaseURL is the public ChEMBL REST root.
const DefaultChEMBLBaseURL = "https://www.ebi.ac.uk/chembl/api/data"

// ChEMBLClient handles interactions with the ChEMBL REST API
type ChEMBLClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	rateLimit  *rate.Limiter
}

// ChEMBLConfig represents configuration for ChEMBL API client
type ChEMBLConfig struct {
	BaseURL   string        `json:"base_url"`
	Timeout   time.Duration `json:"timeout"`
	RateLimit int           `json:"rate_limit"` // requests per second
	UserAgent string        `json:"user_agent"`
}

// FlexNumber decodes JSON numbers that the API sometimes sends as strings.
type FlexNumber float64

// UnmarshalJSON accepts 4, 4.0 and "4.0".
func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 {
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", data, err)
	}
	*n = FlexNumber(f)
	return nil
}

// ATCCodes decodes either a list of codes or a list of classification
// objects carrying a level5 code.
type ATCCodes []string

// UnmarshalJSON implements json.Unmarshaler.
func (a *ATCCodes) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := ATCCodes{}
	for _, item := range items {
		var code string
		if err := json.Unmarshal(item, &code); err == nil {
			if code != "" {
				out = append(out, code)
			}
			continue
		}
		var obj struct {
			Level5 string `json:"level5"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.Level5 != "" {
			out = append(out, obj.Level5)
		}
	}
	*a = out
	return nil
}

// MoleculeSynonym is one synonym row of a molecule.
type MoleculeSynonym struct {
	Synonym string `json:"molecule_synonym"`
	Type    string `json:"syn_type"`
}

// Molecule is the subset of a ChEMBL molecule record the pipeline keeps.
type Molecule struct {
	ChEMBLID         string            `json:"molecule_chembl_id"`
	PrefName         string            `json:"pref_name"`
	MaxPhase         *FlexNumber       `json:"max_phase"`
	MoleculeType     string            `json:"molecule_type"`
	FirstApproval    *FlexNumber       `json:"first_approval"`
	DrugType         *FlexNumber       `json:"drug_type"`
	Withdrawn        *bool             `json:"withdrawn_flag"`
	BlackBoxWarning  *FlexNumber       `json:"black_box_warning"`
	ATCCodes         ATCCodes          `json:"atc_classifications"`
	USANStem         string            `json:"usan_stem"`
	IndicationClass  string            `json:"indication_class"`
	MoleculeSynonyms []MoleculeSynonym `json:"molecule_synonyms"`
}

// Synonyms returns the distinct synonym strings.
func (m *Molecule) Synonyms() []string {
	seen := make(map[string]struct{}, len(m.MoleculeSynonyms))
	var out []string
	for _, s := range m.MoleculeSynonyms {
		if s.Synonym == "" {
			continue
		}
		if _, ok := seen[s.Synonym]; ok {
			continue
		}
		seen[s.Synonym] = struct{}{}
		out = append(out, s.Synonym)
	}
	return out
}

// Mechanism is one mechanism-of-action row.
type Mechanism struct {
	MechanismOfAction string `json:"mechanism_of_action"`
	ActionType        string `json:"action_type"`
	TargetChEMBLID    string `json:"target_chembl_id"`
	DiseaseEfficacy   *bool  `json:"disease_efficacy"`
}

// moleculeSearchResponse represents the molecule search endpoint payload
type moleculeSearchResponse struct {
	Molecules []Molecule `json:"molecules"`
}

// mechanismResponse represents the mechanism endpoint payload
type mechanismResponse struct {
	Mechanisms []Mechanism `json:"mechanisms"`
}

// NewChEMBLClient creates a new ChEMBL API client
func NewChEMBLClient(config ChEMBLConfig) *ChEMBLClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultChEMBLBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if config.UserAgent == "" {
		config.UserAgent = "adc-enrich/1.0"
	}

	return &ChEMBLClient{
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		userAgent: config.UserAgent,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// SearchMolecules runs a free-text molecule search.
func (c *ChEMBLClient) SearchMolecules(ctx context.Context, query string) ([]Molecule, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	var resp moleculeSearchResponse
	if err := c.getJSON(ctx, "molecule/search.json", url.Values{"q": {query}}, &resp); err != nil {
		return nil, fmt.Errorf("failed to search molecules for %q: %w", query, err)
	}
	return resp.Molecules, nil
}

// GetMolecule fetches the full record of one molecule.
func (c *ChEMBLClient) GetMolecule(ctx context.Context, chemblID string) (*Molecule, error) {
	var m Molecule
	if err := c.getJSON(ctx, "molecule/"+url.PathEscape(chemblID)+".json", nil, &m); err != nil {
		return nil, fmt.Errorf("failed to fetch molecule %s: %w", chemblID, err)
	}
	return &m, nil
}

// GetMechanisms lists the mechanisms of action recorded for a molecule.
func (c *ChEMBLClient) GetMechanisms(ctx context.Context, chemblID string) ([]Mechanism, error) {
	var resp mechanismResponse
	params := url.Values{"molecule_chembl_id": {chemblID}}
	if err := c.getJSON(ctx, "mechanism.json", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch mechanisms for %s: %w", chemblID, err)
	}
	return resp.Mechanisms, nil
}

// getJSON performs a rate-limited GET and decodes the JSON body
func (c *ChEMBLClient) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, path)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}
