package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultFirebaseURL is the Identity Toolkit REST endpoint.
const DefaultFirebaseURL = "https://identitytoolkit.googleapis.com/v1"

// Firebase talks to the hosted Identity Toolkit REST API.
type Firebase struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewFirebase creates a provider for a Firebase project's web API key. An
// empty baseURL selects DefaultFirebaseURL.
func NewFirebase(apiKey, baseURL string) (*Firebase, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("firebase API key is required")
	}
	if baseURL == "" {
		baseURL = DefaultFirebaseURL
	}
	return &Firebase{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type firebaseAuthResponse struct {
	LocalID string `json:"localId"`
	IDToken string `json:"idToken"`
}

type firebaseErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn calls accounts:signInWithPassword.
func (p *Firebase) SignIn(ctx context.Context, email, password string) (Handle, error) {
	var out firebaseAuthResponse
	err := p.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return Handle{}, err
	}
	return Handle{UserID: out.LocalID, Token: out.IDToken}, nil
}

// SignUp calls accounts:signUp.
func (p *Firebase) SignUp(ctx context.Context, email, password string) (Handle, error) {
	var out firebaseAuthResponse
	err := p.call(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return Handle{}, err
	}
	return Handle{UserID: out.LocalID, Token: out.IDToken}, nil
}

// SendPasswordReset calls accounts:sendOobCode with PASSWORD_RESET.
func (p *Firebase) SendPasswordReset(ctx context.Context, email string) error {
	return p.call(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil)
}

func (p *Firebase) call(ctx context.Context, method string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	endpoint := p.baseURL + "/" + method + "?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return parseFirebaseError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// parseFirebaseError extracts the code from messages such as
// "WEAK_PASSWORD : Password should be at least 6 characters".
func parseFirebaseError(status int, data []byte) error {
	var fe firebaseErrorResponse
	if err := json.Unmarshal(data, &fe); err != nil || fe.Error.Message == "" {
		return fmt.Errorf("identity provider returned status %d", status)
	}
	code, detail, _ := strings.Cut(fe.Error.Message, " : ")
	return &Error{Code: Code(strings.TrimSpace(code)), Detail: strings.TrimSpace(detail)}
}
