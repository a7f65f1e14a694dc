package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"libris/internal/domain"
)

type BookClient struct {
	httpClient *HttpClient
}

func NewBookClient(baseUrl string) *BookClient {
	return &BookClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *BookClient) Create(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/books", body)
}

func (c *BookClient) GetAll(limit int, offset int64) (*Response, error) {
	path := fmt.Sprintf("/api/v1/books?limit=%d&offset=%d", limit, offset)
	return c.httpClient.GET(path)
}

func (c *BookClient) GetAvailable(limit int, offset int64) (*Response, error) {
	path := fmt.Sprintf("/api/v1/books?available=true&limit=%d&offset=%d", limit, offset)
	return c.httpClient.GET(path)
}

func (c *BookClient) GetByID(id string) (*Response, error) {
	path := "/api/v1/books/id/" + url.PathEscape(id)
	return c.httpClient.GET(path)
}

func (c *BookClient) GetByISBN(isbn string) (*Response, error) {
	path := "/api/v1/books/isbn/" + url.PathEscape(isbn)
	return c.httpClient.GET(path)
}

func (c *BookClient) Update(id string, body any) (*Response, error) {
	path := "/api/v1/books/id/" + url.PathEscape(id)
	return c.httpClient.PATCH(path, body)
}

func (c *BookClient) Delete(id string) (*Response, error) {
	path := "/api/v1/books/id/" + url.PathEscape(id)
	return c.httpClient.DELETE(path)
}

func (c *BookClient) PlaceOnHold(id string, body any) (*Response, error) {
	path := "/api/v1/books/id/" + url.PathEscape(id) + "/hold"
	return c.httpClient.POST(path, body)
}

func (c *BookClient) CheckOut(id string, body any) (*Response, error) {
	path := "/api/v1/books/id/" + url.PathEscape(id) + "/checkout"
	return c.httpClient.POST(path, body)
}

func (c *BookClient) Return(id string) (*Response, error) {
	path := "/api/v1/books/id/" + url.PathEscape(id) + "/return"
	return c.httpClient.POST(path, struct{}{})
}

func (c *BookClient) CreateRaw(rawBody []byte) (*Response, error) {
	return c.httpClient.POSTRaw("/api/v1/books", rawBody)
}

func (c *BookClient) UpdateRaw(id string, rawBody []byte) (*Response, error) {
	path := "/api/v1/books/id/" + url.PathEscape(id)
	return c.httpClient.PATCHRaw(path, rawBody)
}

func (c *BookClient) DecodeBook(resp *Response) (*domain.Book, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode book wrapper:\n%+v\n%s", resp.ToString(), err)
	}

	var book domain.Book
	if err := json.Unmarshal(wrapper.Data, &book); err != nil {
		return nil, fmt.Errorf("could not decode book json:\n%+v\n%s", resp.ToString(), err)
	}

	return &book, nil
}

func (c *BookClient) DecodeBooks(resp *Response) ([]*domain.Book, *Metadata, error) {
	var wrapper struct {
		Data       json.RawMessage `json:"data"`
		TotalCount int64           `json:"total_count"`
		Limit      int             `json:"limit"`
		Offset     int64           `json:"offset"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, nil, fmt.Errorf("could not decode paginated resp:\n%+v\n%s", resp.ToString(), err)
	}

	var books []*domain.Book
	if err := json.Unmarshal(wrapper.Data, &books); err != nil {
		return nil, nil, fmt.Errorf("could not decode book list:\n%+v\n%s", resp.ToString(), err)
	}

	metadata := &Metadata{
		TotalCount: wrapper.TotalCount,
		Limit:      wrapper.Limit,
		Offset:     wrapper.Offset,
	}

	return books, metadata, nil
}
