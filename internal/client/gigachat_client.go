// Package client implements the GigaChat backend client for the gpt2giga
// proxy. It coordinates a single proxied request end to end: obtaining a
// valid credential, translating the OpenAI request into GigaChat format,
// issuing the backend call, and routing the reply back through the response
// translator, either as one complete body or as a relayed SSE stream.
package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gpt2giga/gpt2giga/internal/auth/gigachat"
	"github.com/gpt2giga/gpt2giga/internal/config"
	"github.com/gpt2giga/gpt2giga/internal/interfaces"
	translator "github.com/gpt2giga/gpt2giga/internal/translator/gigachat"
	"github.com/gpt2giga/gpt2giga/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
)

const userAgent = "gpt2giga/1.0"

// GigaChatClient implements the interfaces.Client interface for the GigaChat API.
type GigaChatClient struct {
	// mu guards cfg and httpClient, which are replaced together on a
	// config hot reload while requests are in flight.
	mu           sync.RWMutex
	httpClient   *http.Client
	cfg          *config.Config
	tokenManager *gigachat.TokenManager
}

// NewGigaChatClient creates a new GigaChat client instance.
//
// Parameters:
//   - cfg: The application configuration.
//   - tokenManager: The shared credential manager for the backend.
//
// Returns:
//   - *GigaChatClient: A new GigaChat client instance.
func NewGigaChatClient(cfg *config.Config, tokenManager *gigachat.TokenManager) *GigaChatClient {
	return &GigaChatClient{
		httpClient:   util.SetProxy(cfg, &http.Client{}),
		cfg:          cfg,
		tokenManager: tokenManager,
	}
}

// Provider returns the provider name for this client.
func (c *GigaChatClient) Provider() string {
	return "gigachat"
}

// UpdateConfig swaps in a new configuration after a hot reload.
func (c *GigaChatClient) UpdateConfig(cfg *config.Config) {
	httpClient := util.SetProxy(cfg, &http.Client{})
	c.mu.Lock()
	c.cfg = cfg
	c.httpClient = httpClient
	c.mu.Unlock()
}

// snapshot returns the current configuration and HTTP client as one
// consistent pair. In-flight requests keep the pair they started with.
func (c *GigaChatClient) snapshot() (*config.Config, *http.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg, c.httpClient
}

// SendRawMessage sends an OpenAI-format request to GigaChat and returns the
// complete response translated back into OpenAI format.
//
// Parameters:
//   - ctx: The context for the request.
//   - modelName: The client-facing model name.
//   - rawJSON: The raw OpenAI-format JSON request body.
//
// Returns:
//   - []byte: The OpenAI-format response body.
//   - *interfaces.ErrorMessage: An error message if the request fails.
func (c *GigaChatClient) SendRawMessage(ctx context.Context, modelName string, rawJSON []byte) ([]byte, *interfaces.ErrorMessage) {
	cfg, httpClient := c.snapshot()

	backendJSON, errMsg := translateRequest(cfg, modelName, rawJSON, false)
	if errMsg != nil {
		return nil, errMsg
	}

	respBody, errMsg := c.apiRequest(ctx, cfg, httpClient, backendJSON, false)
	if errMsg != nil {
		return nil, errMsg
	}

	bodyBytes, errReadAll := io.ReadAll(respBody)
	_ = respBody.Close()
	if errReadAll != nil {
		return nil, &interfaces.ErrorMessage{StatusCode: http.StatusBadGateway, Error: errReadAll}
	}
	addAPIResponseData(ctx, cfg, bodyBytes)

	return []byte(translator.ConvertGigaChatResponseToOpenAINonStream(modelName, bodyBytes)), nil
}

// SendRawMessageStream sends an OpenAI-format request to GigaChat and relays
// the backend stream. Each backend chunk is routed through the response
// translator and delivered in arrival order; argument fragments of a function
// call are assembled before a tool-call chunk goes out. The channels are
// closed when the backend stream ends; an abnormal termination is reported on
// the error channel first so the stream never ends silently.
//
// Parameters:
//   - ctx: The context for the request.
//   - modelName: The client-facing model name.
//   - rawJSON: The raw OpenAI-format JSON request body.
//
// Returns:
//   - <-chan []byte: A channel for receiving translated response chunks.
//   - <-chan *interfaces.ErrorMessage: A channel for receiving error messages.
func (c *GigaChatClient) SendRawMessageStream(ctx context.Context, modelName string, rawJSON []byte) (<-chan []byte, <-chan *interfaces.ErrorMessage) {
	dataTag := []byte("data: ")
	doneTag := []byte("data: [DONE]")
	errChan := make(chan *interfaces.ErrorMessage, 1)
	dataChan := make(chan []byte)

	cfg, httpClient := c.snapshot()

	backendJSON, errMsg := translateRequest(cfg, modelName, rawJSON, true)
	if errMsg != nil {
		errChan <- errMsg
		close(errChan)
		close(dataChan)
		return dataChan, errChan
	}

	go func() {
		defer close(errChan)
		defer close(dataChan)

		stream, err := c.apiRequest(ctx, cfg, httpClient, backendJSON, true)
		if err != nil {
			errChan <- err
			return
		}
		defer func() {
			_ = stream.Close()
		}()

		var param any
		scanner := bufio.NewScanner(stream)
		buffer := make([]byte, 1024*1024)
		scanner.Buffer(buffer, 1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			addAPIResponseData(ctx, cfg, line)
			if bytes.HasPrefix(line, doneTag) {
				return
			}
			if !bytes.HasPrefix(line, dataTag) {
				continue
			}
			chunks := translator.ConvertGigaChatResponseToOpenAI(modelName, line[len(dataTag):], &param)
			for i := 0; i < len(chunks); i++ {
				select {
				case dataChan <- []byte(chunks[i]):
				case <-ctx.Done():
					return
				}
			}
		}

		// The backend closed the stream without [DONE]: either the
		// connection dropped or the context was cancelled. Surface it.
		if errScanner := scanner.Err(); errScanner != nil {
			errChan <- &interfaces.ErrorMessage{StatusCode: http.StatusBadGateway, Error: fmt.Errorf("gigachat stream interrupted: %w", errScanner)}
			return
		}
		if ctx.Err() == nil {
			errChan <- &interfaces.ErrorMessage{StatusCode: http.StatusBadGateway, Error: errors.New("gigachat stream interrupted: connection closed before completion")}
		}
	}()

	return dataChan, errChan
}

// translateRequest resolves the backend model and converts the OpenAI request
// body, distinguishing unmappable input (400, never retried) from backend
// failures.
func translateRequest(cfg *config.Config, modelName string, rawJSON []byte, stream bool) ([]byte, *interfaces.ErrorMessage) {
	backendModel := cfg.ResolveModel(modelName)

	backendJSON, err := translator.ConvertOpenAIRequestToGigaChat(backendModel, rawJSON, stream)
	if err != nil {
		var translationErr *translator.TranslationError
		if errors.As(err, &translationErr) {
			return nil, &interfaces.ErrorMessage{StatusCode: http.StatusBadRequest, Error: err}
		}
		return nil, &interfaces.ErrorMessage{StatusCode: http.StatusInternalServerError, Error: err}
	}

	if !cfg.GigaChat.ProfanityCheck {
		backendJSON, _ = sjson.SetBytes(backendJSON, "profanity_check", false)
	}

	return backendJSON, nil
}

// apiRequest issues the chat-completions call with a valid credential
// attached. A 401 from the backend invalidates the cached credential and the
// call is retried exactly once with a freshly acquired one; a second
// consecutive auth failure is surfaced. No other automatic retries.
func (c *GigaChatClient) apiRequest(ctx context.Context, cfg *config.Config, httpClient *http.Client, jsonBody []byte, stream bool) (io.ReadCloser, *interfaces.ErrorMessage) {
	url := fmt.Sprintf("%s/chat/completions", cfg.GigaChat.BaseURL)

	for attempt := 0; ; attempt++ {
		cred, errToken := c.tokenManager.Token(ctx)
		if errToken != nil {
			return nil, &interfaces.ErrorMessage{StatusCode: http.StatusUnauthorized, Error: errToken}
		}

		req, errReq := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
		if errReq != nil {
			return nil, &interfaces.ErrorMessage{StatusCode: http.StatusInternalServerError, Error: fmt.Errorf("failed to create request: %w", errReq)}
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("X-Request-ID", uuid.NewString())
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", cred.AccessToken))
		if stream {
			req.Header.Set("Accept", "text/event-stream")
		} else {
			req.Header.Set("Accept", "application/json")
		}

		if cfg.RequestLog {
			if ginContext, ok := ctx.Value("gin").(*gin.Context); ok {
				ginContext.Set("API_REQUEST", jsonBody)
			}
		}

		resp, errDo := httpClient.Do(req)
		if errDo != nil {
			return nil, &interfaces.ErrorMessage{StatusCode: http.StatusBadGateway, Error: fmt.Errorf("failed to execute request: %w", errDo)}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			bodyBytes, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			c.tokenManager.Invalidate()
			if attempt == 0 {
				log.Debugf("gigachat rejected the credential, refreshing and retrying once")
				continue
			}
			return nil, &interfaces.ErrorMessage{StatusCode: http.StatusUnauthorized, Error: fmt.Errorf("%s", string(bodyBytes))}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			bodyBytes, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return nil, &interfaces.ErrorMessage{StatusCode: resp.StatusCode, Error: fmt.Errorf("%s", string(bodyBytes))}
		}

		return resp.Body, nil
	}
}

// addAPIResponseData appends raw backend response data to the request log
// when request logging is enabled.
func addAPIResponseData(ctx context.Context, cfg *config.Config, data []byte) {
	if !cfg.RequestLog {
		return
	}
	if ginContext, ok := ctx.Value("gin").(*gin.Context); ok {
		var buf []byte
		if existing, exists := ginContext.Get("API_RESPONSE"); exists {
			buf = existing.([]byte)
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
		ginContext.Set("API_RESPONSE", buf)
	}
}
