// Package plantnet is a client for the PlantNet identification API.
package plantnet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/example/plantid/internal/apperrors"
	"github.com/example/plantid/internal/logging"
)

const (
	// DefaultBaseURL is the "all floras" identification endpoint.
	DefaultBaseURL = "https://my-api.plantnet.org/v2/identify/all"

	apiKeyParam   = "api-key"
	imagesField   = "images"
	maxLoggedBody = 2048
)

// Config is injected at construction; the client holds no global state.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Identifier is what the identification flow needs from the remote service.
type Identifier interface {
	Identify(ctx context.Context, requestID, path, filename, contentType string) (*Match, error)
}

// Client performs a single multipart POST per identification. It does not
// retry and sets no timeout of its own.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a client from cfg, filling in the default endpoint and
// transport when unset.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger.Named("plantnet_client"),
	}
}

// Identify uploads the stored image at path and returns the service's
// top-ranked match.
func (c *Client) Identify(ctx context.Context, requestID, path, filename, contentType string) (*Match, error) {
	opLogger := logging.WithOperation(c.logger, "plantnet.identify", requestID)

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError("Image file not found", err)
	}
	defer f.Close()

	endpoint, err := c.endpoint()
	if err != nil {
		return nil, apperrors.NewInternalError("invalid PlantNet endpoint", err)
	}

	body, formContentType := streamMultipart(f, filename, contentType)
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, apperrors.NewInternalError("unable to build PlantNet request", err)
	}
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := logging.NewOperationError("plantnet.post", requestID, err)
		opLogger.Error("PlantNet request failed", zap.Error(wrapped))
		return nil, apperrors.NewRemoteServiceError(0, "PlantNet API Error: "+err.Error(), wrapped)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		wrapped := logging.NewOperationError("plantnet.read", requestID, err)
		return nil, apperrors.NewRemoteServiceError(resp.StatusCode, "PlantNet API Error: unreadable response", wrapped)
	}
	opLogger.Info("PlantNet API response",
		zap.Int("status", resp.StatusCode),
		zap.String("body", truncate(raw, maxLoggedBody)),
	)

	var decoded identifyResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := "Unknown error"
		if decodeErr == nil && decoded.Message != "" {
			message = decoded.Message
		}
		return nil, apperrors.NewRemoteServiceError(resp.StatusCode, "PlantNet API Error: "+message, nil)
	}
	if decodeErr != nil {
		return nil, apperrors.NewRemoteServiceError(resp.StatusCode, "PlantNet API Error: malformed response", decodeErr)
	}
	if len(decoded.Results) == 0 {
		return nil, apperrors.NewNoMatchError()
	}

	best := decoded.Results[0].match()
	return &best, nil
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(apiKeyParam, c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// streamMultipart writes the form through a pipe so the image is never held
// in memory twice.
func streamMultipart(file io.Reader, filename, contentType string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", formDataDisposition(imagesField, filename))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, writer.FormDataContentType()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// formDataDisposition quotes like multipart.Writer.CreateFormFile, escaping
// only backslashes and double quotes.
func formDataDisposition(field, filename string) string {
	return fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(field), quoteEscaper.Replace(filename))
}

func truncate(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
