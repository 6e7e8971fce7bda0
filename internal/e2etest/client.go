package e2etest

import (
	"bytes"
	"context"
	"github.com/PuerkitoBio/goquery"
	"github.com/justinas/nosurf"
	"github.com/myrjola/fsvalidator/internal/errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	neturl "net/url"
	"strings"
	"time"
)

// Client talks to the server the way the htmx powered front end does: requests carry the HX-Request and CSRF
// headers and the responses are workspace fragments.
type Client struct {
	client *http.Client
	url    string
}

func NewClient(url string) (*Client, error) {
	jar, err := newUnsafeCookieJar()
	if err != nil {
		return nil, errors.Wrap(err, "create unsafe cookie jar")
	}
	return &Client{
		client: &http.Client{ //nolint:exhaustruct // defaults are fine for the rest.
			Jar: jar,
			// Surface redirects so that tests can assert on them.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		url: url,
	}, nil
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = c.newRequestWithContext(ctx, http.MethodGet, urlPath, nil); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = c.client.Do(req); err == nil {
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Get fetches a URL and returns the response.
func (c *Client) Get(ctx context.Context, urlPath string) (*http.Response, error) {
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	if req, err = c.newRequestWithContext(ctx, http.MethodGet, urlPath, nil); err != nil {
		return nil, errors.Wrap(err, "create request with context")
	}
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	return resp, nil
}

// GetDoc fetches a URL and returns a goquery document.
func (c *Client) GetDoc(ctx context.Context, urlPath string) (*goquery.Document, error) {
	resp, err := c.Get(ctx, urlPath)
	if err != nil {
		return nil, errors.Wrap(err, "client get")
	}
	return readDoc(resp)
}

// UploadDocument uploads data as a file called name and returns the workspace fragment.
func (c *Client) UploadDocument(ctx context.Context, name string, data []byte) (*goquery.Document, error) {
	var (
		body bytes.Buffer
		err  error
		part io.Writer
	)
	writer := multipart.NewWriter(&body)
	if part, err = writer.CreateFormFile("document", name); err != nil {
		return nil, errors.Wrap(err, "create form file")
	}
	if _, err = part.Write(data); err != nil {
		return nil, errors.Wrap(err, "write form file")
	}
	if err = writer.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart writer")
	}
	resp, err := c.Post(ctx, "/documents", writer.FormDataContentType(), &body, true)
	if err != nil {
		return nil, errors.Wrap(err, "post document")
	}
	return readDoc(resp)
}

// SelectCategory selects the category with key and returns the workspace fragment.
func (c *Client) SelectCategory(ctx context.Context, key string) (*goquery.Document, error) {
	resp, err := c.PostForm(ctx, "/categories/"+key, neturl.Values{}, true)
	if err != nil {
		return nil, errors.Wrap(err, "post category", slog.String("category", key))
	}
	return readDoc(resp)
}

// SelectQuestion asks question and returns the workspace fragment.
func (c *Client) SelectQuestion(ctx context.Context, question string) (*goquery.Document, error) {
	resp, err := c.PostForm(ctx, "/questions", neturl.Values{"question": {question}}, true)
	if err != nil {
		return nil, errors.Wrap(err, "post question")
	}
	return readDoc(resp)
}

// PostForm submits form values to urlPath. The CSRF token is added from the home page.
//
// With hx the request is sent like htmx sends it, otherwise like a plain HTML form.
func (c *Client) PostForm(ctx context.Context, urlPath string, values neturl.Values, hx bool) (*http.Response, error) {
	token, err := c.csrfToken(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get CSRF token")
	}
	form := neturl.Values{}
	for key, vals := range values {
		form[key] = vals
	}
	form.Set("csrf_token", token)
	return c.post(ctx, urlPath, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), token, hx)
}

// Post sends body to urlPath with the CSRF token in the request header.
func (c *Client) Post(
	ctx context.Context,
	urlPath string,
	contentType string,
	body io.Reader,
	hx bool,
) (*http.Response, error) {
	token, err := c.csrfToken(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get CSRF token")
	}
	return c.post(ctx, urlPath, contentType, body, token, hx)
}

func (c *Client) post(
	ctx context.Context,
	urlPath string,
	contentType string,
	body io.Reader,
	token string,
	hx bool,
) (*http.Response, error) {
	req, err := c.newRequestWithContext(ctx, http.MethodPost, urlPath, body)
	if err != nil {
		return nil, errors.Wrap(err, "new request with context")
	}
	req.Header.Set("Content-Type", contentType)
	if hx {
		req.Header.Set("HX-Request", "true")
		req.Header.Set(nosurf.HeaderName, token)
	}
	var resp *http.Response
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	return resp, nil
}

// csrfToken fetches the home page and extracts the CSRF token from the upload form.
func (c *Client) csrfToken(ctx context.Context) (string, error) {
	doc, err := c.GetDoc(ctx, "/")
	if err != nil {
		return "", errors.Wrap(err, "get home page")
	}
	return extractCSRFToken(doc, "/documents")
}

// newRequestWithContext creates a new HTTP request to the server that respects the given context.
func (c *Client) newRequestWithContext(
	ctx context.Context,
	method, urlPath string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url+urlPath, body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	return req, nil
}

func extractCSRFToken(doc *goquery.Document, formActionURLPath string) (string, error) {
	formSelector := "form[action='" + formActionURLPath + "']"
	form := doc.Find(formSelector)
	if form.Length() == 0 {
		return "", errors.New("form not found", slog.String("selector", formSelector))
	}
	csrfToken, ok := form.Find("input[name=csrf_token]").Attr("value")
	if !ok {
		return "", errors.New("csrf_token not found in form", slog.String("selector", formSelector))
	}
	return csrfToken, nil
}

func readDoc(resp *http.Response) (*goquery.Document, error) {
	defer func() {
		_ = resp.Body.Close()
	}()
	if http.StatusOK != resp.StatusCode {
		return nil, errors.New("unexpected status code", slog.Int("status", resp.StatusCode))
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "create document from reader")
	}
	return doc, nil
}
