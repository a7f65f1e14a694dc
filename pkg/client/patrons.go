package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"libris/internal/domain"
)

type PatronClient struct {
	httpClient *HttpClient
}

func NewPatronClient(baseUrl string) *PatronClient {
	return &PatronClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *PatronClient) Create(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/patrons", body)
}

func (c *PatronClient) GetAll(limit int, offset int64) (*Response, error) {
	path := fmt.Sprintf("/api/v1/patrons?limit=%d&offset=%d", limit, offset)
	return c.httpClient.GET(path)
}

func (c *PatronClient) GetByID(id string) (*Response, error) {
	path := "/api/v1/patrons/id/" + url.PathEscape(id)
	return c.httpClient.GET(path)
}

func (c *PatronClient) GetHolds(id string) (*Response, error) {
	path := "/api/v1/patrons/id/" + url.PathEscape(id) + "/holds"
	return c.httpClient.GET(path)
}

func (c *PatronClient) Update(id string, body any) (*Response, error) {
	path := "/api/v1/patrons/id/" + url.PathEscape(id)
	return c.httpClient.PATCH(path, body)
}

func (c *PatronClient) Deactivate(id string) (*Response, error) {
	path := "/api/v1/patrons/id/" + url.PathEscape(id)
	return c.httpClient.DELETE(path)
}

func (c *PatronClient) AddFee(id string, body any) (*Response, error) {
	path := "/api/v1/patrons/id/" + url.PathEscape(id) + "/fees"
	return c.httpClient.POST(path, body)
}

func (c *PatronClient) PayFee(id string, body any) (*Response, error) {
	path := "/api/v1/patrons/id/" + url.PathEscape(id) + "/fees/pay"
	return c.httpClient.POST(path, body)
}

func (c *PatronClient) CreateRaw(rawBody []byte) (*Response, error) {
	return c.httpClient.POSTRaw("/api/v1/patrons", rawBody)
}

func (c *PatronClient) DecodePatron(resp *Response) (*domain.Patron, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode patron wrapper:\n%+v\n%s", resp.ToString(), err)
	}

	var patron domain.Patron
	if err := json.Unmarshal(wrapper.Data, &patron); err != nil {
		return nil, fmt.Errorf("could not decode patron json:\n%+v\n%s", resp.ToString(), err)
	}

	return &patron, nil
}

func (c *PatronClient) DecodePatrons(resp *Response) ([]*domain.Patron, *Metadata, error) {
	var wrapper struct {
		Data       json.RawMessage `json:"data"`
		TotalCount int64           `json:"total_count"`
		Limit      int             `json:"limit"`
		Offset     int64           `json:"offset"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, nil, fmt.Errorf("could not decode paginated resp:\n%+v\n%s", resp.ToString(), err)
	}

	var patrons []*domain.Patron
	if err := json.Unmarshal(wrapper.Data, &patrons); err != nil {
		return nil, nil, fmt.Errorf("could not decode patron list:\n%+v\n%s", resp.ToString(), err)
	}

	metadata := &Metadata{
		TotalCount: wrapper.TotalCount,
		Limit:      wrapper.Limit,
		Offset:     wrapper.Offset,
	}

	return patrons, metadata, nil
}
