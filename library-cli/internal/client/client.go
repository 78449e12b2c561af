// Package client is a thin HTTP client for the library service API.
package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const requestTimeout = 15 * time.Second

var ErrNoToken = errors.New("no token: run login first or pass --token")

// APIError is an error response from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

type Book struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Genre    string `json:"genre"`
	Year     int    `json:"year,omitempty"`
	Quantity int    `json:"quantity"`
}

type Order struct {
	ID       string    `json:"id"`
	OrderNo  string    `json:"orderNo"`
	BookID   string    `json:"bookId"`
	UserID   string    `json:"userId"`
	Quantity int       `json:"quantity"`
	Date     time.Time `json:"date"`
}

type BookFilter struct {
	Genre  string
	Title  string
	Author string
	Year   int
	Page   int
	Limit  int
}

type Client struct {
	http  *resty.Client
	token string
}

func New(baseURL, token string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/") + "/api").
			SetTimeout(requestTimeout).
			SetHeader("Content-Type", "application/json"),
		token: token,
	}
}

func (c *Client) request(auth bool) (*resty.Request, error) {
	req := c.http.R().SetError(&errorBody{})
	if auth {
		if c.token == "" {
			return nil, ErrNoToken
		}
		req.SetHeader("Authorization", c.token)
	}
	return req, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	msg := resp.Status()
	if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
		msg = body.Error
	}
	return &APIError{Status: resp.StatusCode(), Message: msg}
}

func (c *Client) Register(mobile, email, password, adminKey string) (string, error) {
	req, _ := c.request(false)
	var out messageBody
	resp, err := req.SetBody(map[string]string{
		"mobileNumber": mobile,
		"email":        email,
		"password":     password,
		"adminKey":     adminKey,
	}).SetResult(&out).Post("/register")
	if err := check(resp, err); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Login returns the access token. login is a mobile number, or an email
// when it contains '@'.
func (c *Client) Login(login, password string) (string, error) {
	body := map[string]string{"password": password, "mobileNumber": login}
	if strings.Contains(login, "@") {
		body = map[string]string{"password": password, "email": login}
	}
	req, _ := c.request(false)
	var out struct {
		Token string `json:"token"`
	}
	resp, err := req.SetBody(body).SetResult(&out).Post("/login")
	if err := check(resp, err); err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}

func (c *Client) Logout() error {
	req, err := c.request(true)
	if err != nil {
		return err
	}
	return check(req.Post("/logout"))
}

func (c *Client) Books(f BookFilter) ([]Book, error) {
	req, _ := c.request(false)
	params := map[string]string{"genre": f.Genre, "title": f.Title, "author": f.Author}
	if f.Year != 0 {
		params["year"] = strconv.Itoa(f.Year)
	}
	if f.Limit > 0 {
		params["limit"] = strconv.Itoa(f.Limit)
		params["page"] = strconv.Itoa(max(f.Page, 1))
	}
	for k, v := range params {
		if v != "" {
			req.SetQueryParam(k, v)
		}
	}
	var books []Book
	resp, err := req.SetResult(&books).Get("/books")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *Client) Book(id string) (Book, error) {
	req, _ := c.request(false)
	var book Book
	resp, err := req.SetPathParam("id", id).SetResult(&book).Get("/books/{id}")
	if err := check(resp, err); err != nil {
		return Book{}, err
	}
	return book, nil
}

func (c *Client) AddBook(book Book) (Book, error) {
	req, err := c.request(true)
	if err != nil {
		return Book{}, err
	}
	var out Book
	resp, err := req.SetBody(book).SetResult(&out).Post("/books")
	if err := check(resp, err); err != nil {
		return Book{}, err
	}
	return out, nil
}

func (c *Client) DeleteBook(id string) error {
	req, err := c.request(true)
	if err != nil {
		return err
	}
	return check(req.SetPathParam("id", id).Delete("/books/{id}"))
}

func (c *Client) Orders() ([]Order, error) {
	req, err := c.request(true)
	if err != nil {
		return nil, err
	}
	var orders []Order
	resp, err := req.SetResult(&orders).Get("/orders")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) PlaceOrder(bookID string, quantity int) (Order, error) {
	req, err := c.request(true)
	if err != nil {
		return Order{}, err
	}
	var order Order
	resp, err := req.SetBody(map[string]any{"bookId": bookID, "quantity": quantity}).SetResult(&order).Post("/orders")
	if err := check(resp, err); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (c *Client) Fine(issueDate, expiryDate string) (int, error) {
	req, err := c.request(true)
	if err != nil {
		return 0, err
	}
	var out struct {
		Fine int `json:"fine"`
	}
	resp, err := req.
		SetQueryParams(map[string]string{"issueDate": issueDate, "expiryDate": expiryDate}).
		SetResult(&out).
		Get("/fine")
	if err := check(resp, err); err != nil {
		return 0, err
	}
	return out.Fine, nil
}
