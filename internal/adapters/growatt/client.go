package growatt

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	loginPath       = "/newTwoLoginAPI.do"
	logoutPath      = "/logout.do"
	plantListPath   = "/PlantListAPI.do"
	plantDevicePath = "/newTwoPlantAPI.do"
	panelStatusPath = "/panel/storage/getStorageStatusData"

	userAgent = "espcontrol-backend-go/1.0"
)

// SessionState models the vendor session lifecycle
type SessionState int

const (
	StateLoggedOut SessionState = iota
	StateLoggingIn
	StateLoggedIn
)

func (s SessionState) String() string {
	switch s {
	case StateLoggingIn:
		return "loggingIn"
	case StateLoggedIn:
		return "loggedIn"
	default:
		return "loggedOut"
	}
}

// Client talks to the Growatt cloud. The same cookie session backs both the
// documented API endpoints and the web panel's dashboard endpoints, which is
// what makes the panel fallback possible without a second login.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	username     string
	password     string
	loginTimeout time.Duration
	logger       *logrus.Logger

	mu        sync.Mutex
	state     SessionState
	lastLogin time.Time
}

// NewClient creates a Growatt client for one account
func NewClient(baseURL, username, password string, loginTimeout, requestTimeout time.Duration, logger *logrus.Logger) *Client {
	jar, _ := cookiejar.New(nil)

	return &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Jar:     jar,
		},
		baseURL:      strings.TrimRight(baseURL, "/"),
		username:     username,
		password:     password,
		loginTimeout: loginTimeout,
		logger:       logger,
	}
}

// State returns the current session state
func (c *Client) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Invalidate forces the next call to re-login
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateLoggedOut
}

// EnsureLogin logs in unless the session is still inside the reuse window
func (c *Client) EnsureLogin(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateLoggedIn && time.Since(c.lastLogin) < c.loginTimeout {
		c.mu.Unlock()
		return nil
	}
	c.state = StateLoggingIn
	c.mu.Unlock()

	return c.Login(ctx)
}

// Login authenticates against the vendor, refreshing the session cookies
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateLoggingIn
	c.mu.Unlock()

	form := url.Values{
		"userName": {c.username},
		"password": {hashPassword(c.password)},
	}

	var response struct {
		Back struct {
			Success bool   `json:"success"`
			Msg     string `json:"msg"`
		} `json:"back"`
	}

	if err := c.postForm(ctx, loginPath, form, &response); err != nil {
		c.Invalidate()
		return fmt.Errorf("growatt login request failed: %w", err)
	}

	if !response.Back.Success {
		c.Invalidate()
		return fmt.Errorf("growatt login rejected: %s", response.Back.Msg)
	}

	c.mu.Lock()
	c.state = StateLoggedIn
	c.lastLogin = time.Now()
	c.mu.Unlock()

	c.logger.WithField("username", c.username).Info("Growatt login successful")
	return nil
}

// Logout ends the vendor session; failures are logged and dropped
func (c *Client) Logout(ctx context.Context) {
	c.mu.Lock()
	loggedIn := c.state == StateLoggedIn
	c.state = StateLoggedOut
	c.mu.Unlock()

	if !loggedIn {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+logoutPath, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Warn("Growatt logout failed")
		return
	}
	resp.Body.Close()
}

// FetchAllPlantData retrieves every plant and its devices
func (c *Client) FetchAllPlantData(ctx context.Context) (map[string]*PlantData, error) {
	var listResponse struct {
		Back struct {
			Success bool    `json:"success"`
			Data    []Plant `json:"data"`
		} `json:"back"`
	}

	if err := c.getJSON(ctx, plantListPath, nil, &listResponse); err != nil {
		return nil, fmt.Errorf("failed to fetch plant list: %w", err)
	}
	if !listResponse.Back.Success {
		return nil, fmt.Errorf("plant list request rejected by vendor")
	}

	plants := make(map[string]*PlantData, len(listResponse.Back.Data))
	for _, plant := range listResponse.Back.Data {
		devices, err := c.fetchPlantDevices(ctx, plant.PlantID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch devices for plant %s: %w", plant.PlantID, err)
		}
		plants[plant.PlantID] = &PlantData{
			PlantName: plant.PlantName,
			Devices:   devices,
		}
	}

	return plants, nil
}

func (c *Client) fetchPlantDevices(ctx context.Context, plantID string) (map[string]*DeviceData, error) {
	params := url.Values{
		"op":      {"getAllDeviceList"},
		"plantId": {plantID},
	}

	var response struct {
		DeviceList []*DeviceData `json:"deviceList"`
	}

	if err := c.getJSON(ctx, plantDevicePath, params, &response); err != nil {
		return nil, err
	}

	devices := make(map[string]*DeviceData, len(response.DeviceList))
	for _, device := range response.DeviceList {
		devices[device.Serial] = device
	}
	return devices, nil
}

// FetchPanelStatus pulls detailed metrics from the web panel's dashboard
// status endpoint, the data the browser scrape used to read off the page
func (c *Client) FetchPanelStatus(ctx context.Context, plantID, serial string) (*StatusData, error) {
	form := url.Values{
		"storageSn": {serial},
	}

	var response struct {
		Result int         `json:"result"`
		Obj    *StatusData `json:"obj"`
	}

	path := fmt.Sprintf("%s?plantId=%s", panelStatusPath, url.QueryEscape(plantID))
	if err := c.postForm(ctx, path, form, &response); err != nil {
		return nil, fmt.Errorf("panel status request failed: %w", err)
	}

	if response.Result != 1 || response.Obj == nil {
		return nil, fmt.Errorf("panel status unavailable for %s", serial)
	}

	return response.Obj, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("vendor request failed with status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode vendor response: %w", err)
	}
	return nil
}

// hashPassword applies the vendor's MD5 variant: hex digest with the first
// nibble of any zero-leading byte replaced by 'c'
func hashPassword(password string) string {
	sum := md5.Sum([]byte(password))
	digest := []byte(hex.EncodeToString(sum[:]))
	for i := 0; i < len(digest); i += 2 {
		if digest[i] == '0' {
			digest[i] = 'c'
		}
	}
	return string(digest)
}
